package couchboot

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"
)

// EntityMetadata holds the identity and field-naming information resolved once
// per entity type at repository construction. Read-only after resolution.
type EntityMetadata struct {
	Type       reflect.Type
	Collection string

	idIndex      int
	versionIndex int
	// Go field name -> document field name, plus document names mapped to
	// themselves so sort specs can use either form.
	fields map[string]string
}

// resolveEntityMetadata inspects the entity struct for the id field (tagged
// `couchboot:"id"`, falling back to a field named ID or Id) and an optional
// version counter (tagged `couchboot:"version"`).
func resolveEntityMetadata(t reflect.Type, collection string) (*EntityMetadata, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("entity type %s is not a struct", t)
	}

	meta := &EntityMetadata{
		Type:         t,
		Collection:   collection,
		idIndex:      -1,
		versionIndex: -1,
		fields:       make(map[string]string, t.NumField()),
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue // unexported
		}

		switch field.Tag.Get("couchboot") {
		case "id":
			if field.Type.Kind() != reflect.String {
				return nil, fmt.Errorf("id field %s.%s must be a string", t.Name(), field.Name)
			}
			meta.idIndex = i
		case "version":
			if field.Type.Kind() != reflect.Int64 && field.Type.Kind() != reflect.Int {
				return nil, fmt.Errorf("version field %s.%s must be an integer", t.Name(), field.Name)
			}
			meta.versionIndex = i
		}

		docName := documentFieldName(field)
		if docName == "" {
			continue
		}
		meta.fields[field.Name] = docName
		meta.fields[docName] = docName
	}

	if meta.idIndex == -1 {
		for _, name := range []string{"ID", "Id"} {
			if field, ok := t.FieldByName(name); ok && field.Type.Kind() == reflect.String {
				meta.idIndex = field.Index[0]
				break
			}
		}
	}
	if meta.idIndex == -1 {
		return nil, fmt.Errorf("entity type %s has no id field", t.Name())
	}

	return meta, nil
}

// DocumentField resolves a Go field name or document field name to the
// document field name used in queries.
func (m *EntityMetadata) DocumentField(name string) (string, bool) {
	docName, ok := m.fields[name]
	return docName, ok
}

// ID returns the identity value of an entity.
func (m *EntityMetadata) ID(entity interface{}) string {
	v := reflect.ValueOf(entity)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	return v.Field(m.idIndex).String()
}

// SetID writes the identity value; entity must be a pointer to the entity
// struct.
func (m *EntityMetadata) SetID(entity interface{}, id string) {
	v := reflect.ValueOf(entity).Elem()
	v.Field(m.idIndex).SetString(id)
}

// BumpVersion increments the version counter when the entity declares one.
func (m *EntityMetadata) BumpVersion(entity interface{}) {
	if m.versionIndex == -1 {
		return
	}
	field := reflect.ValueOf(entity).Elem().Field(m.versionIndex)
	field.SetInt(field.Int() + 1)
}

func documentFieldName(field reflect.StructField) string {
	if tag, ok := field.Tag.Lookup("json"); ok {
		name := strings.Split(tag, ",")[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return toSnakeCase(field.Name)
}

// toSnakeCase converts an exported Go name to the document naming convention,
// e.g. CreatedAt -> created_at.
func toSnakeCase(name string) string {
	var result strings.Builder
	for i, r := range name {
		if i > 0 && unicode.IsUpper(r) {
			result.WriteRune('_')
		}
		result.WriteRune(unicode.ToLower(r))
	}
	return result.String()
}

// collectionNameOf derives the collection name for a document type, falling
// back to the snake_cased type name when the document does not name one.
func collectionNameOf(doc Document) string {
	if name := doc.GetCollectionName(); name != "" {
		return name
	}
	t := reflect.TypeOf(doc)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return toSnakeCase(t.Name())
}
