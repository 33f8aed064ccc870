package graph

import (
	"encoding"
	"fmt"
	"sort"

	"github.com/psgs/psgs/psgs"
)

// NodeData is the user payload of a node.  Its type name identifies the node
// type in the schema and in persisted graphs.  UnmarshalBinary gets a slice that
// is only valid for the duration of the call.
type NodeData interface {
	TypeName() string
	encoding.BinaryAppender
	encoding.BinaryUnmarshaler
}

// NoPayload can be embedded by node types that carry no data besides edges.
type NoPayload struct{}

func (NoPayload) AppendBinary(b []byte) ([]byte, error) { return b, nil }

func (*NoPayload) UnmarshalBinary([]byte) error { return nil }

// Schema is the set of node types and edge models a graph can use.  A schema is
// built once and can be shared by any number of graphs.
type Schema struct {
	types  map[string]func() NodeData
	models map[string]ModelDef
}

// NewSchema returns an empty schema.
func NewSchema() *Schema {
	return &Schema{
		types:  make(map[string]func() NodeData),
		models: make(map[string]ModelDef),
	}
}

// RegisterNodeType adds a node type.  The create function returns an empty
// payload that persisted data gets unmarshaled into.
func (s *Schema) RegisterNodeType(name string, create func() NodeData) error {
	if name == "" || create == nil {
		return psgs.Usagef("node type needs a name and a create function")
	}
	if got := create().TypeName(); got != name {
		return psgs.Usagef("node type %q creates payloads of type %q", name, got)
	}
	if _, found := s.types[name]; found {
		return psgs.Usagef("node type %q already registered", name)
	}
	s.types[name] = create
	return nil
}

// RegisterModels adds edge model definitions along with their reverse models.
func (s *Schema) RegisterModels(defs ...ModelDef) error {
	for _, def := range defs {
		if err := s.registerModel(def); err != nil {
			return err
		}
		if rev := def.reverseDef(); rev != nil && rev != def {
			if err := s.registerModel(rev); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Schema) registerModel(def ModelDef) error {
	if def.Name() == "" {
		return psgs.Usagef("edge model needs a name")
	}
	if prev, found := s.models[def.Name()]; found {
		if prev == def {
			return nil
		}
		return psgs.Usagef("a different edge model %q is already registered", def.Name())
	}
	s.models[def.Name()] = def
	return nil
}

// NodeTypes returns the registered node type names in sorted order.
func (s *Schema) NodeTypes() []string {
	names := make([]string, 0, len(s.types))
	for name := range s.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Models returns the registered edge model names in sorted order.
func (s *Schema) Models() []string {
	names := make([]string, 0, len(s.models))
	for name := range s.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Schema) newData(typeName string) (NodeData, error) {
	create, found := s.types[typeName]
	if !found {
		return nil, fmt.Errorf("%w: %q", psgs.ErrUnknownType, typeName)
	}
	return create(), nil
}

// checkModel fails unless def is the definition registered under its name.
func (s *Schema) checkModel(def ModelDef) error {
	if s.models[def.Name()] != def {
		return fmt.Errorf("%w: %q", psgs.ErrUnknownModel, def.Name())
	}
	return nil
}
