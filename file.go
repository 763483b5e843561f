package argparser

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"
)

// File is a configuration-file argument: the token is a path whose
// content is decoded into T. The format is picked by extension (json,
// yaml, toml) and every decoder is tried in order when the extension
// is unknown. The "watch" type-arg enables live reload of the file.
//
// The decoded value lives behind a shared pointer, so the copies the
// parser makes while storing the field all observe reloads.
type File[T any] struct {
	Name  string
	watch bool

	state *fileState[T]
}

// fileState is shared between every copy of one parsed File value and
// the reload goroutine.
type fileState[T any] struct {
	cur    atomic.Pointer[T]
	events chan fsnotify.Event
}

// unmarshalFn is the signature json, yaml and toml share.
type unmarshalFn func(data []byte, v any) error

func (f *File[T]) ApplyTypeArgs(args map[string]string) error {
	if v, ok := args["watch"]; ok {
		f.watch = v == "true"
	}
	return nil
}

func (f *File[T]) FromString(source string) error {
	f.Name = source
	f.state = &fileState[T]{}
	if err := f.state.load(source); err != nil {
		return err
	}
	if f.watch {
		f.state.events = make(chan fsnotify.Event, 2)
		return f.state.watchChange(source)
	}
	return nil
}

func (f *File[T]) Example() string { return "config-file" }

// Get returns the current decoded value. Under live reload the pointer
// changes on every successful reload while old pointers stay valid.
func (f *File[T]) Get() *T {
	if f.state == nil {
		return nil
	}
	return f.state.cur.Load()
}

// UpdateEvents returns a channel receiving one event per observed file
// change. Nil unless the "watch" type-arg was set.
//
// A channel instead of a callback: callbacks for back-to-back changes
// would run concurrently in an uncontrolled way, channel receives
// don't.
func (f *File[T]) UpdateEvents() <-chan fsnotify.Event {
	if f.state == nil {
		return nil
	}
	return f.state.events
}

func (s *fileState[T]) load(source string) error {
	content, err := os.ReadFile(source)
	if err != nil {
		return err
	}

	parseOrder := []unmarshalFn{json.Unmarshal, yaml.Unmarshal, toml.Unmarshal}
	switch {
	case strings.HasSuffix(source, ".yaml") || strings.HasSuffix(source, ".yml"):
		parseOrder = []unmarshalFn{yaml.Unmarshal}
	case strings.HasSuffix(source, ".json"):
		parseOrder = []unmarshalFn{json.Unmarshal}
	case strings.HasSuffix(source, ".toml"):
		parseOrder = []unmarshalFn{toml.Unmarshal}
	}

	value, err := decodeByOrder[T](content, parseOrder)
	if err != nil {
		return err
	}
	s.cur.Store(&value)
	return nil
}

// decodeByOrder unmarshals into an untyped tree first and lets
// mapstructure fill T, so "8080" in a yaml file still lands in an int
// field.
func decodeByOrder[T any](content []byte, parseOrder []unmarshalFn) (T, error) {
	var value T
	elist := []error{}
	for _, unmarshal := range parseOrder {
		var raw any
		if err := unmarshal(content, &raw); err != nil {
			elist = append(elist, err)
			continue
		}
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &value,
			WeaklyTypedInput: true,
		})
		if err != nil {
			return value, err
		}
		if err := dec.Decode(raw); err != nil {
			elist = append(elist, err)
			continue
		}
		return value, nil
	}
	return value, errList(elist)
}

func (s *fileState[T]) watchChange(filename string) error {
	configFile := filepath.Clean(filename)
	configDir, _ := filepath.Split(configFile)
	realConfigFile, _ := filepath.EvalSymlinks(filename)

	// watch the entire directory to pick up renames and atomic saves
	// in a cross-platform way
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(configDir); err != nil {
		watcher.Close()
		return err
	}

	go func(watcher *fsnotify.Watcher) {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok { // 'Events' channel is closed
					return
				}
				currentConfigFile, _ := filepath.EvalSymlinks(filename)
				// only care about the config file with the following cases:
				// 1 - the config file was modified or created
				// 2 - the real path to the config file changed
				//     (eg: k8s ConfigMap replacement)
				if (filepath.Clean(event.Name) == configFile &&
					(event.Has(fsnotify.Write) || event.Has(fsnotify.Create))) ||
					(currentConfigFile != "" && currentConfigFile != realConfigFile) {
					realConfigFile = currentConfigFile
					if err := s.load(filename); err != nil {
						log.Printf("read config file error: %s", err)
					}
					select {
					case s.events <- event:
					default:
						// if the channel blocks, discard this event
					}
				} else if filepath.Clean(event.Name) == configFile && event.Has(fsnotify.Remove) {
					return
				}

			case err, ok := <-watcher.Errors:
				if ok { // 'Errors' channel is not closed
					log.Printf("watcher error: %s", err)
				}
				return
			}
		}
	}(watcher)
	return nil
}

type errList []error

func (el errList) Error() string {
	ret := []string{}
	for _, e := range el {
		ret = append(ret, fmt.Sprintf("[%s]", e.Error()))
	}
	return strings.Join(ret, " ")
}
