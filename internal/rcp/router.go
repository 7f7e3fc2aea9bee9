package rcp

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Envelope is a routed command and the device it is addressed to.
// Target may be BroadcastID.
type Envelope struct {
	Target  string
	Command Command
}

type decodeFunc func(payload []byte) (Command, error)

// decoders is the fixed command table. Every entry has a schema file of the
// same name under schemas/.
var decoders = map[string]decodeFunc{
	CmdStatus:   func([]byte) (Command, error) { return StatusQuery{}, nil },
	CmdSync:     decodeInto[Sync],
	CmdMode:     decodeMode,
	CmdAuto:     func([]byte) (Command, error) { return ModeChange{Target: ModeAuto}, nil },
	CmdManual:   func([]byte) (Command, error) { return ModeChange{Target: ModeManual}, nil },
	CmdStart:    decodeInto[Start],
	CmdStop:     decodeInto[Stop],
	CmdPause:    decodeInto[Pause],
	CmdResume:   decodeInto[Resume],
	CmdAbort:    decodeInto[Abort],
	CmdEnd:      decodeInto[End],
	CmdPick:     decodeInto[Pick],
	CmdPlace:    decodeInto[Place],
	CmdTransfer: decodeInto[Transfer],
}

// Router maps a topic and payload to a typed command. It holds no device
// state and is safe for concurrent use.
type Router struct {
	topics  Topics
	schemas map[string]*jsonschema.Schema
}

// NewRouter compiles the embedded command schemas.
func NewRouter(topics Topics) (*Router, error) {
	compiler := jsonschema.NewCompiler()

	entries, err := fs.ReadDir(schemaFS, "schemas")
	if err != nil {
		return nil, fmt.Errorf("reading command schemas: %w", err)
	}
	for _, e := range entries {
		data, err := schemaFS.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading schema %s: %w", e.Name(), err)
		}
		if err := compiler.AddResource(e.Name(), bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("adding schema %s: %w", e.Name(), err)
		}
	}

	schemas := make(map[string]*jsonschema.Schema, len(decoders))
	for name := range decoders {
		schema, err := compiler.Compile(name + ".json")
		if err != nil {
			return nil, fmt.Errorf("compiling schema for %s: %w", name, err)
		}
		schemas[name] = schema
	}

	return &Router{topics: topics, schemas: schemas}, nil
}

// Topics returns the namespace the router accepts.
func (r *Router) Topics() Topics {
	return r.topics
}

// Route parses a transport envelope.
//
// A status topic with no command name yields StatusQuery. A command topic is
// looked up in the command table and its payload validated and decoded.
func (r *Router) Route(topic string, payload []byte) (Envelope, error) {
	addr, err := r.topics.Parse(topic)
	if err != nil {
		return Envelope{}, err
	}

	switch {
	case addr.Type == TypeStatus && addr.Name == "":
		return Envelope{Target: addr.Target, Command: StatusQuery{}}, nil
	case addr.Type == TypeCmd && addr.Name != "":
		cmd, err := r.Decode(addr.Name, payload)
		if err != nil {
			return Envelope{}, err
		}
		return Envelope{Target: addr.Target, Command: cmd}, nil
	default:
		return Envelope{}, fmt.Errorf("%w: message type %q", ErrUnsupportedCommand, addr.Type)
	}
}

// Decode validates and decodes the payload of a named command. An empty
// payload is treated as {}.
func (r *Router) Decode(name string, payload []byte) (Command, error) {
	decode, ok := decoders[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCommand, name)
	}

	if len(bytes.TrimSpace(payload)) == 0 {
		payload = []byte("{}")
	}

	// Numbers stay exact so integer bounds near MaxInt64 hold.
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedPayload, name, err)
	}
	if err := r.schemas[name].Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedPayload, name, err)
	}

	cmd, err := decode(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedPayload, name, err)
	}
	return cmd, nil
}

// Supported reports whether name is in the command table.
func Supported(name string) bool {
	_, ok := decoders[name]
	return ok
}

// CommandNames lists the command table, sorted.
func CommandNames() []string {
	names := make([]string, 0, len(decoders))
	for name := range decoders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func decodeInto[T Command](payload []byte) (Command, error) {
	var cmd T
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return nil, err
	}
	return cmd, nil
}

func decodeMode(payload []byte) (Command, error) {
	var body struct {
		Mode string `json:"mode"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, err
	}
	mode, err := ParseMode(body.Mode)
	if err != nil {
		return nil, err
	}
	if mode == ModeError {
		return nil, fmt.Errorf("mode %s cannot be requested", strings.ToLower(string(mode)))
	}
	return ModeChange{Target: mode}, nil
}
