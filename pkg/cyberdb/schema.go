// Package cyberdb implements the security-assessment knowledge base: a
// schema-driven entity store with idempotent merge-upserts, lazy filterable
// queries, and the ingestor/scanner plugin contracts built on top of it.
package cyberdb

// FieldType declares the value type a schema field accepts.
type FieldType int

const (
	FieldString FieldType = iota
	FieldInt
	FieldBool
	FieldTime
	FieldJSON
)

func (t FieldType) String() string {
	switch t {
	case FieldString:
		return "string"
	case FieldInt:
		return "int"
	case FieldBool:
		return "bool"
	case FieldTime:
		return "time"
	case FieldJSON:
		return "json"
	default:
		return "unknown"
	}
}

// EntitySchema describes one entity: its natural key and typed fields.
// The natural key drives upsert identity; the tool-side object identifier
// is never part of it.
type EntitySchema struct {
	Name   string
	Key    []string
	Fields map[string]FieldType
}

var builtinSchemas = []EntitySchema{
	{
		Name: "host",
		Key:  []string{"ip"},
		Fields: map[string]FieldType{
			"ip":          FieldString,
			"hostname":    FieldString,
			"os_family":   FieldString,
			"domain":      FieldString,
			"compromised": FieldBool,
		},
	},
	{
		Name: "dns",
		Key:  []string{"ip", "domain_name"},
		Fields: map[string]FieldType{
			"ip":          FieldString,
			"domain_name": FieldString,
		},
	},
	{
		Name: "service",
		Key:  []string{"host", "port", "protocol"},
		Fields: map[string]FieldType{
			"host":     FieldString,
			"port":     FieldInt,
			"protocol": FieldString,
			"type":     FieldString,
			"banner":   FieldString,
		},
	},
	{
		Name: "service_smb",
		Key:  []string{"host", "port"},
		Fields: map[string]FieldType{
			"host":    FieldString,
			"port":    FieldInt,
			"smbv1":   FieldBool,
			"signing": FieldBool,
		},
	},
	{
		Name: "ad_user",
		Key:  []string{"name", "domain"},
		Fields: map[string]FieldType{
			"name":               FieldString,
			"domain":             FieldString,
			"password":           FieldString,
			"lm":                 FieldString,
			"ntlm":               FieldString,
			"rid":                FieldInt,
			"sid":                FieldString,
			"email":              FieldString,
			"full_name":          FieldString,
			"description":        FieldString,
			"distinguished_name": FieldString,
			"sam_account_name":   FieldString,
			"enabled":            FieldBool,
			"pwd_never_expires":  FieldBool,
			"admin_count":        FieldBool,
			"pwd_last_set":       FieldTime,
			"when_created":       FieldTime,
			"last_logon":         FieldTime,
		},
	},
	{
		Name: "ad_computer",
		Key:  []string{"name", "domain"},
		Fields: map[string]FieldType{
			"name":               FieldString,
			"domain":             FieldString,
			"sid":                FieldString,
			"os":                 FieldString,
			"os_version":         FieldString,
			"dns_hostname":       FieldString,
			"description":        FieldString,
			"distinguished_name": FieldString,
			"sam_account_name":   FieldString,
			"primary_group_sid":  FieldString,
			"enabled":            FieldBool,
			"pwd_last_set":       FieldTime,
			"when_created":       FieldTime,
			"last_logon":         FieldTime,
		},
	},
	{
		Name: "windows_user",
		Key:  []string{"host", "user"},
		Fields: map[string]FieldType{
			"host":     FieldString,
			"user":     FieldString,
			"rid":      FieldInt,
			"password": FieldString,
			"lm":       FieldString,
			"ntlm":     FieldString,
		},
	},
	{
		Name: "password",
		Key:  []string{"value"},
		Fields: map[string]FieldType{
			"value": FieldString,
		},
	},
	{
		Name: "hash",
		Key:  []string{"value"},
		Fields: map[string]FieldType{
			"value":    FieldString,
			"type":     FieldString,
			"password": FieldString,
		},
	},
	{
		Name: "smb_file",
		Key:  []string{"host", "share", "directory", "file"},
		Fields: map[string]FieldType{
			"host":         FieldString,
			"share":        FieldString,
			"directory":    FieldString,
			"file":         FieldString,
			"size":         FieldInt,
			"is_directory": FieldBool,
		},
	},
	{
		Name: "control",
		Key:  []string{"id"},
		Fields: map[string]FieldType{
			"id":         FieldString,
			"name":       FieldString,
			"scanner":    FieldString,
			"status":     FieldString,
			"confidence": FieldString,
			"severity":   FieldString,
			"details":    FieldJSON,
		},
	},
	{
		Name: "juicy_search",
		Key:  []string{"id"},
		Fields: map[string]FieldType{
			"id":         FieldString,
			"rule_name":  FieldString,
			"rule_value": FieldString,
			"value":      FieldString,
			"category":   FieldString,
			"details":    FieldJSON,
		},
	},
}

var schemasByName = func() map[string]EntitySchema {
	m := make(map[string]EntitySchema, len(builtinSchemas))
	for _, s := range builtinSchemas {
		m[s.Name] = s
	}
	return m
}()

// SchemaFor returns the schema of the named entity.
func SchemaFor(entity string) (EntitySchema, bool) {
	s, ok := schemasByName[entity]
	return s, ok
}

// Entities returns the names of all declared entities, in declaration order.
func Entities() []string {
	names := make([]string, 0, len(builtinSchemas))
	for _, s := range builtinSchemas {
		names = append(names, s.Name)
	}
	return names
}
