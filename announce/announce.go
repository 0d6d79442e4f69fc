// Package announce publishes plugin state to the Consul KV store so other
// processes can see which plugins a host runs.
package announce

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/hashicorp/consul/api"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lcx/hotplug/codec"
	"github.com/lcx/hotplug/log"
	"github.com/lcx/hotplug/plugin"
)

// Announcer is a plugin.Listener writing one key per plugin below a
// prefix. Uninstalled plugins have their key deleted.
type Announcer struct {
	kv      *api.KV
	prefix  string
	timeout time.Duration
	codec   codec.Codec
}

// New connects to the agent described by props. A nil c selects json.
func New(props plugin.ConsulProperties, c codec.Codec) (*Announcer, error) {
	if props.Address == "" {
		return nil, errors.New("consul address is empty")
	}
	cfg := api.DefaultConfig()
	cfg.Address = props.Address
	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("consul client: %w", err)
	}
	if c == nil {
		c = &codec.JSONCodec{}
	}
	timeout := props.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Announcer{kv: client.KV(), prefix: props.Prefix, timeout: timeout, codec: c}, nil
}

// Key is the KV key of plugin id.
func (a *Announcer) Key(id string) string {
	return path.Join(a.prefix, id)
}

// OnStateChange implements plugin.Listener.
func (a *Announcer) OnStateChange(ctx context.Context, ev plugin.StateEvent) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	opts := (&api.WriteOptions{}).WithContext(ctx)
	key := a.Key(ev.Plugin.ID)

	if ev.Type == plugin.EventUninstall {
		if _, err := a.kv.Delete(key, opts); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		log.Debug().Str("key", key).Msg("plugin announcement removed")
		return nil
	}

	msg, err := Payload(ev)
	if err != nil {
		return err
	}
	data, err := a.codec.Encode(msg, nil)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if _, err := a.kv.Put(&api.KVPair{Key: key, Value: data}, opts); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	log.Debug().Str("key", key).Str("event", string(ev.Type)).Msg("plugin announced")
	return nil
}

// Payload describes ev as a protobuf struct.
func Payload(ev plugin.StateEvent) (*structpb.Struct, error) {
	beans := make([]any, 0, len(ev.Plugin.Beans))
	for _, b := range ev.Plugin.Beans {
		beans = append(beans, b)
	}
	return structpb.NewStruct(map[string]any{
		"id":      ev.Plugin.ID,
		"version": ev.Plugin.Version,
		"state":   ev.Plugin.State.String(),
		"event":   string(ev.Type),
		"eventId": ev.ID,
		"time":    ev.Time.UTC().Format(time.RFC3339Nano),
		"beans":   beans,
	})
}
