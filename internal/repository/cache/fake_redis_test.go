package cache

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
)

// fakeRedis answers the handful of commands the cache package sends, straight
// from a client hook, so no server is needed.
type fakeRedis struct {
	mu    sync.Mutex
	data  map[string]string
	ttl   map[string]string
	sent  [][]any
	fails map[string]error
}

func newFakeRedis(t *testing.T) (*redis.Client, *fakeRedis) {
	t.Helper()
	f := &fakeRedis{data: map[string]string{}, ttl: map[string]string{}, fails: map[string]error{}}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	client.AddHook(f)
	t.Cleanup(func() { _ = client.Close() })
	return client, f
}

// lapse drops key as if its TTL ran out.
func (f *fakeRedis) lapse(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	delete(f.ttl, key)
}

func (f *fakeRedis) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, fmt.Errorf("fake redis does not dial %s", addr)
	}
}

func (f *fakeRedis) ProcessHook(redis.ProcessHook) redis.ProcessHook {
	return func(_ context.Context, cmd redis.Cmder) error {
		return f.apply(cmd)
	}
}

func (f *fakeRedis) ProcessPipelineHook(redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(_ context.Context, cmds []redis.Cmder) error {
		var first error
		for _, cmd := range cmds {
			if err := f.apply(cmd); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
}

func (f *fakeRedis) apply(cmd redis.Cmder) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	args := cmd.Args()
	f.sent = append(f.sent, args)
	if err := f.fails[cmd.Name()]; err != nil {
		cmd.SetErr(err)
		return err
	}

	key := fmt.Sprint(args[1])
	_, exists := f.data[key]
	switch cmd.Name() {
	case "set":
		if hasFlag(args[3:], "nx") && exists {
			cmd.(*redis.BoolCmd).SetVal(false)
			return nil
		}
		f.data[key] = fmt.Sprint(args[2])
		for i := 3; i+1 < len(args); i++ {
			if strings.EqualFold(fmt.Sprint(args[i]), "ex") {
				f.ttl[key] = fmt.Sprint(args[i+1]) + "s"
			}
		}
		switch c := cmd.(type) {
		case *redis.BoolCmd:
			c.SetVal(true)
		case *redis.StatusCmd:
			c.SetVal("OK")
		}
	case "get":
		if !exists {
			cmd.SetErr(redis.Nil)
			return redis.Nil
		}
		cmd.(*redis.StringCmd).SetVal(f.data[key])
	case "del":
		delete(f.data, key)
		delete(f.ttl, key)
		cmd.(*redis.IntCmd).SetVal(1)
	case "incr":
		n, _ := strconv.ParseInt(f.data[key], 10, 64)
		n++
		f.data[key] = strconv.FormatInt(n, 10)
		cmd.(*redis.IntCmd).SetVal(n)
	case "expire":
		_, hasTTL := f.ttl[key]
		if hasFlag(args[3:], "nx") && hasTTL {
			cmd.(*redis.BoolCmd).SetVal(false)
			return nil
		}
		f.ttl[key] = fmt.Sprint(args[2]) + "s"
		cmd.(*redis.BoolCmd).SetVal(true)
	default:
		err := fmt.Errorf("fake redis: unsupported command %q", cmd.Name())
		cmd.SetErr(err)
		return err
	}
	return nil
}

func hasFlag(args []any, flag string) bool {
	for _, a := range args {
		if strings.EqualFold(fmt.Sprint(a), flag) {
			return true
		}
	}
	return false
}
