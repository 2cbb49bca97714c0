package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ctxgraph/pkg/types"
)

const userSource = `// Package users manages accounts.
package users

import (
	"fmt"
	str "strings"
)

// MaxUsers caps the registry.
const MaxUsers = 10

// User represents a user in the system
type User struct {
	ID   int
	Name string
}

// GetName returns the user's name
func (u *User) GetName() string {
	return str.TrimSpace(u.Name)
}

// Describe formats the user.
func (u *User) Describe() string {
	return fmt.Sprintf("%d %s", u.ID, u.GetName())
}

// NewUser creates a new user
func NewUser(id int, name string) *User {
	validate(name)
	return &User{ID: id, Name: name}
}

func validate(name string) bool {
	return len(name) > 0
}
`

var userInfo = FileInfo{RelPath: "users/user.go", ImportPath: "example.com/app/users"}

func entityByID(t *testing.T, r *types.ParseResult, id string) types.Entity {
	t.Helper()
	for _, e := range r.Entities {
		if e.ID == id {
			return e
		}
	}
	require.Failf(t, "entity not found", "id %s", id)
	return types.Entity{}
}

func hasRel(r *types.ParseResult, source, target, relType string) bool {
	for _, rel := range r.Relationships {
		if rel.SourceID == source && rel.TargetID == target && rel.Type == relType {
			return true
		}
	}
	return false
}

func hasRef(r *types.ParseResult, source, targetQN, relType string) bool {
	for _, ref := range r.References {
		if ref.SourceID == source && ref.TargetQualifiedName == targetQN && ref.Type == relType {
			return true
		}
	}
	return false
}

func TestParseSource_Entities(t *testing.T) {
	result, err := New().ParseSource(userInfo, []byte(userSource))
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	assert.Equal(t, "users", result.PackageName)

	pkg := entityByID(t, result, "pkg:example.com/app/users")
	assert.Equal(t, types.EntityPackage, pkg.Type)
	assert.Equal(t, "Package users manages accounts.", pkg.Summary)

	file := entityByID(t, result, "users/user.go")
	assert.Equal(t, types.EntityFile, file.Type)
	assert.Equal(t, "user.go", file.Name)
	assert.Equal(t, 1, file.StartLine)

	user := entityByID(t, result, "users/user.go#User")
	assert.Equal(t, types.EntityStruct, user.Type)
	assert.Equal(t, "example.com/app/users.User", user.QualifiedName)
	assert.Equal(t, "User represents a user in the system", user.Summary)
	assert.Contains(t, user.Content, "type User struct {")
	assert.Contains(t, user.Content, "// User represents")
	assert.Contains(t, user.Metadata[MetaPatterns], PatternEntity)
	assert.Equal(t, "true", user.Metadata[MetaExported])

	getName := entityByID(t, result, "users/user.go#User.GetName")
	assert.Equal(t, types.EntityMethod, getName.Type)
	assert.Equal(t, "GetName", getName.Name)
	assert.Equal(t, "example.com/app/users.User.GetName", getName.QualifiedName)
	assert.Equal(t, "func (u *User) GetName() string", getName.Signature)
	assert.Equal(t, "User", getName.Metadata[MetaReceiver])

	newUser := entityByID(t, result, "users/user.go#NewUser")
	assert.Equal(t, types.EntityFunction, newUser.Type)
	assert.Equal(t, "func NewUser(id int, name string) *User", newUser.Signature)
	assert.Greater(t, newUser.EndLine, newUser.StartLine)

	field := entityByID(t, result, "users/user.go#User.Name")
	assert.Equal(t, types.EntityField, field.Type)
	assert.Equal(t, "Name string", field.Signature)

	maxUsers := entityByID(t, result, "users/user.go#MaxUsers")
	assert.Equal(t, types.EntityConstant, maxUsers.Type)
	assert.Equal(t, "const MaxUsers = ...", maxUsers.Signature)

	validate := entityByID(t, result, "users/user.go#validate")
	assert.Equal(t, "false", validate.Metadata[MetaExported])

	for _, e := range result.Entities {
		assert.NoError(t, e.Validate(), e.ID)
	}
}

func TestParseSource_Relationships(t *testing.T) {
	result, err := New().ParseSource(userInfo, []byte(userSource))
	require.NoError(t, err)

	assert.True(t, hasRel(result, "pkg:example.com/app/users", "users/user.go", types.RelContains))
	assert.True(t, hasRel(result, "users/user.go", "users/user.go#User", types.RelContains))
	assert.True(t, hasRel(result, "users/user.go", "users/user.go#NewUser", types.RelContains))
	assert.True(t, hasRel(result, "users/user.go#User", "users/user.go#User.GetName", types.RelContains))
	assert.True(t, hasRel(result, "users/user.go#User", "users/user.go#User.ID", types.RelContains))
	assert.False(t, hasRel(result, "users/user.go", "users/user.go#User.ID", types.RelContains))

	assert.True(t, hasRef(result, "users/user.go", "fmt", types.RelImports))
	assert.True(t, hasRef(result, "users/user.go", "strings", types.RelImports))

	// aliased import, receiver method and same-package function calls
	assert.True(t, hasRef(result, "users/user.go#User.GetName", "strings.TrimSpace", types.RelCalls))
	assert.True(t, hasRef(result, "users/user.go#User.Describe", "fmt.Sprintf", types.RelCalls))
	assert.True(t, hasRef(result, "users/user.go#User.Describe", "example.com/app/users.User.GetName", types.RelCalls))
	assert.True(t, hasRef(result, "users/user.go#NewUser", "example.com/app/users.validate", types.RelCalls))

	// builtins are not calls
	for _, ref := range result.References {
		assert.NotEqual(t, "example.com/app/users.len", ref.TargetQualifiedName)
	}
}

func TestParseSource_MethodOnTypeInAnotherFile(t *testing.T) {
	src := `package users

func (u User) Save() error { return nil }
`
	result, err := New().ParseSource(FileInfo{RelPath: "users/save.go", ImportPath: "example.com/app/users"}, []byte(src))
	require.NoError(t, err)

	var found bool
	for _, ref := range result.References {
		if ref.SourceID == "users/save.go#User.Save" && ref.Type == types.RelContains {
			assert.Equal(t, "example.com/app/users.User", ref.TargetQualifiedName)
			assert.True(t, ref.Inverse)
			found = true
		}
	}
	assert.True(t, found)
}

func TestParseSource_RepeatedNames(t *testing.T) {
	src := `package main

func init() {}
func init() {}
`
	result, err := New().ParseSource(FileInfo{RelPath: "main.go", ImportPath: "example.com/app"}, []byte(src))
	require.NoError(t, err)
	entityByID(t, result, "main.go#init")
	entityByID(t, result, "main.go#init~2")
}

func TestParseSource_Interface(t *testing.T) {
	src := `package store

// UserRepository persists users.
type UserRepository interface {
	// Find loads a user.
	Find(id int) (*User, error)
}
`
	result, err := New().ParseSource(FileInfo{RelPath: "store/repo.go", ImportPath: "example.com/app/store"}, []byte(src))
	require.NoError(t, err)

	repo := entityByID(t, result, "store/repo.go#UserRepository")
	assert.Equal(t, types.EntityInterface, repo.Type)
	assert.Contains(t, repo.Metadata[MetaPatterns], PatternRepository)
	assert.NotContains(t, repo.Metadata[MetaPatterns], PatternEntity)

	find := entityByID(t, result, "store/repo.go#UserRepository.Find")
	assert.Equal(t, types.EntityMethod, find.Type)
	assert.Equal(t, "Find(id int) (*User, error)", find.Signature)
	assert.Equal(t, "Find loads a user.", find.Summary)
	assert.True(t, hasRel(result, repo.ID, find.ID, types.RelContains))
}

func TestParseSource_SyntaxError(t *testing.T) {
	src := `package main

func good() {}

func incomplete( {
}
`
	result, err := New().ParseSource(FileInfo{RelPath: "bad.go", ImportPath: "example.com/app"}, []byte(src))
	require.NoError(t, err)
	assert.True(t, result.HasErrors())
	assert.Equal(t, "main", result.PackageName)
}

func TestParseFile_ReadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "user.go")
	require.NoError(t, os.WriteFile(path, []byte(userSource), 0o600))

	result, err := New().ParseFile(FileInfo{Path: path, RelPath: "users/user.go", ImportPath: "example.com/app/users"})
	require.NoError(t, err)
	assert.Len(t, result.Imports, 2)

	_, err = New().ParseFile(FileInfo{Path: filepath.Join(dir, "missing.go")})
	assert.Error(t, err)
}

func TestDefaultImportName(t *testing.T) {
	tests := map[string]string{
		"fmt":                                "fmt",
		"github.com/spf13/viper":             "viper",
		"github.com/hashicorp/golang-lru/v2": "golanglru",
		"gopkg.in/yaml.v3":                   "yaml",
		"github.com/sashabaranov/go-openai":  "openai",
	}
	for path, want := range tests {
		assert.Equal(t, want, DefaultImportName(path), path)
	}
}

func TestImportPathFor(t *testing.T) {
	assert.Equal(t, "example.com/app", ImportPathFor("example.com/app", "main.go"))
	assert.Equal(t, "example.com/app/internal/x", ImportPathFor("example.com/app", "internal/x/x.go"))
	assert.Equal(t, "internal/x", ImportPathFor("", "internal/x/x.go"))
}

func TestDetectPatterns(t *testing.T) {
	tests := []struct {
		name string
		typ  types.EntityType
		want []string
	}{
		{"OrderAggregate", types.EntityStruct, []string{PatternAggregateRoot, PatternEntity}},
		{"MoneyVO", types.EntityStruct, []string{PatternValueObject}},
		{"UserService", types.EntityInterface, []string{PatternService}},
		{"CreateUserCommand", types.EntityStruct, []string{PatternEntity, PatternCommand}},
		{"SearchHandler", types.EntityStruct, []string{PatternHandler}},
		{"UserRepository", types.EntityFunction, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectPatterns(tt.name, tt.typ))
		})
	}
}
