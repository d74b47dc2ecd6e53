package serial

import "github.com/pkg/errors"

// memoryBackend is a minimal Backend built directly on Go
// map[string]interface{}/[]interface{}/scalars, used only by this
// package's own tests to exercise the dispatch engine without depending
// on the json or bson packages' wire shapes.
type memoryBackend struct {
	stack  []memFrame
	result interface{}

	read []interface{}
}

type memFrameKind int

const (
	memDict memFrameKind = iota
	memArr
)

type memFrame struct {
	kind memFrameKind
	dict map[string]interface{}
	arr  []interface{}
	key  string
}

func newMemoryBackend() *memoryBackend { return &memoryBackend{} }

func newMemoryBackendFromValue(v interface{}) *memoryBackend {
	return &memoryBackend{read: []interface{}{v}}
}

func (b *memoryBackend) finish(v interface{}) {
	if len(b.stack) == 0 {
		b.result = v
		return
	}
	top := &b.stack[len(b.stack)-1]
	switch top.kind {
	case memDict:
		top.dict[top.key] = v
	case memArr:
		top.arr = append(top.arr, v)
	}
}

func (b *memoryBackend) BeginWriteDictionary() error {
	b.stack = append(b.stack, memFrame{kind: memDict, dict: map[string]interface{}{}})
	return nil
}

func (b *memoryBackend) EndWriteDictionary() error {
	n := len(b.stack)
	f := b.stack[n-1]
	b.stack = b.stack[:n-1]
	b.finish(f.dict)
	return nil
}

func (b *memoryBackend) BeginWriteDictionaryEntry(name string) error {
	b.stack[len(b.stack)-1].key = name
	return nil
}

func (b *memoryBackend) EndWriteDictionaryEntry(name string) error { return nil }

func (b *memoryBackend) BeginWriteArray(n int) error {
	b.stack = append(b.stack, memFrame{kind: memArr, arr: make([]interface{}, 0, n)})
	return nil
}

func (b *memoryBackend) EndWriteArray() error {
	n := len(b.stack)
	f := b.stack[n-1]
	b.stack = b.stack[:n-1]
	b.finish(f.arr)
	return nil
}

func (b *memoryBackend) BeginWriteArrayEntry(i int) error { return nil }
func (b *memoryBackend) EndWriteArrayEntry(i int) error   { return nil }

func (b *memoryBackend) WriteValue(v interface{}) error {
	b.finish(v)
	return nil
}

func (b *memoryBackend) Result() interface{} { return b.result }

func (b *memoryBackend) current() interface{} { return b.read[len(b.read)-1] }

func (b *memoryBackend) ReadDictionaryEntry(fn func(name string) error) error {
	dict, ok := b.current().(map[string]interface{})
	if !ok {
		return errors.New("memoryBackend: current value is not a dictionary")
	}
	for k, v := range dict {
		b.read = append(b.read, v)
		err := fn(k)
		b.read = b.read[:len(b.read)-1]
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *memoryBackend) BeginReadArray() (int, error) {
	arr, ok := b.current().([]interface{})
	if !ok {
		return 0, errors.New("memoryBackend: current value is not an array")
	}
	return len(arr), nil
}

func (b *memoryBackend) EndReadArray() error { return nil }

func (b *memoryBackend) ReadArrayEntry(i int, fn func() error) error {
	arr := b.current().([]interface{})
	b.read = append(b.read, arr[i])
	err := fn()
	b.read = b.read[:len(b.read)-1]
	return err
}

func (b *memoryBackend) ReadValue(dst interface{}) error {
	cur := b.current()
	switch d := dst.(type) {
	case *bool:
		v, ok := cur.(bool)
		if !ok {
			return errors.Errorf("memoryBackend: expected bool, got %T", cur)
		}
		*d = v
	case *int64:
		switch v := cur.(type) {
		case int64:
			*d = v
		case int:
			*d = int64(v)
		case float64:
			*d = int64(v)
		default:
			return errors.Errorf("memoryBackend: expected int, got %T", cur)
		}
	case *float64:
		switch v := cur.(type) {
		case float64:
			*d = v
		case int64:
			*d = float64(v)
		default:
			return errors.Errorf("memoryBackend: expected float, got %T", cur)
		}
	case *string:
		v, ok := cur.(string)
		if !ok {
			return errors.Errorf("memoryBackend: expected string, got %T", cur)
		}
		*d = v
	case *interface{}:
		*d = cur
	default:
		return errors.Errorf("memoryBackend: unsupported read destination %T", dst)
	}
	return nil
}

func (b *memoryBackend) TryReadNull() (bool, error) {
	return b.current() == nil, nil
}
