package server

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zeppelin-and-Pails/Victualiser/component"
	"github.com/Zeppelin-and-Pails/Victualiser/errors"
)

func newTestServer(t *testing.T, config Config) *Server {
	t.Helper()

	rawConfig, err := json.Marshal(config)
	require.NoError(t, err)

	comp, err := New(rawConfig, component.Dependencies{})
	require.NoError(t, err)

	s, ok := comp.(*Server)
	require.True(t, ok, "factory should return *Server")
	return s
}

const enrichedSample = `{"text":"hi","language":"en","source":"Web","user":{"name":"Ada","followers":10}}
{"text":"yo","language":"en","source":"Web","user":{"name":"Bob","followers":5}}
{"text":"ça","language":"fr","source":"App","user":{"name":"Eve","followers":2}}
`

func TestFieldsFirstRecordOnly(t *testing.T) {
	s := newTestServer(t, DefaultConfig())

	// The second record's extra field must not appear
	input := `{"b":1,"a":2}` + "\n" + `{"b":1,"a":2,"extra":3}` + "\n"
	fields, err := s.Fields(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, fields)
}

func TestFieldsFlattensNested(t *testing.T) {
	s := newTestServer(t, DefaultConfig())

	fields, err := s.Fields(strings.NewReader(enrichedSample))
	require.NoError(t, err)
	assert.Equal(t, []string{"followers", "language", "name", "source", "text"}, fields)
}

func TestFieldsEmptySink(t *testing.T) {
	s := newTestServer(t, DefaultConfig())

	_, err := s.Fields(strings.NewReader(""))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestProjectPreservesRowCountAndOrder(t *testing.T) {
	s := newTestServer(t, DefaultConfig())

	rows, err := s.Project(strings.NewReader(enrichedSample), []string{"name", "language"})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	name, ok := rows[0].Get("name")
	require.True(t, ok)
	assert.Equal(t, "Ada", name)
	name, _ = rows[2].Get("name")
	assert.Equal(t, "Eve", name)

	// Only the requested fields survive
	assert.Equal(t, []string{"name", "language"}, rows[0].Keys())
}

func TestProjectUnrestrictedKeepsAllFields(t *testing.T) {
	s := newTestServer(t, DefaultConfig())

	rows, err := s.Project(strings.NewReader(enrichedSample), nil)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"text", "language", "source", "name", "followers"}, rows[0].Keys())
}

func TestProjectAbsentFieldOmitted(t *testing.T) {
	s := newTestServer(t, DefaultConfig())

	input := `{"a":1,"b":2}` + "\n" + `{"a":3}` + "\n"
	rows, err := s.Project(strings.NewReader(input), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	_, ok := rows[1].Get("b")
	assert.False(t, ok)
}

func TestProjectSkipsUnparsableLines(t *testing.T) {
	s := newTestServer(t, DefaultConfig())

	input := "garbage\n" + `{"a":1}` + "\n"
	rows, err := s.Project(strings.NewReader(input), nil)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestProjectTruncatedTailEndsQuietly(t *testing.T) {
	s := newTestServer(t, DefaultConfig())

	input := `{"a":1}` + "\n" + `{"a":`
	rows, err := s.Project(strings.NewReader(input), nil)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestWriteTable(t *testing.T) {
	s := newTestServer(t, DefaultConfig())

	rows, err := s.Project(strings.NewReader(enrichedSample), []string{"name", "followers"})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, s.WriteTable(&out, rows, []string{"name", "followers"}))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "name\tfollowers", lines[0])
	assert.Equal(t, "Ada\t10", lines[1])
	assert.Equal(t, "Eve\t2", lines[3])
}

func TestWriteTableEmptyCellForAbsentValue(t *testing.T) {
	s := newTestServer(t, DefaultConfig())

	input := `{"a":"x","b":"y"}` + "\n" + `{"a":"z"}` + "\n"
	rows, err := s.Project(strings.NewReader(input), []string{"a", "b"})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, s.WriteTable(&out, rows, []string{"a", "b"}))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "z\t", lines[2])
}

func TestWriteTableListsStayJSON(t *testing.T) {
	s := newTestServer(t, DefaultConfig())

	input := `{"noun_phrases":["coffee","rain"],"n":2.5,"ok":true}` + "\n"
	rows, err := s.Project(strings.NewReader(input), nil)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, s.WriteTable(&out, rows, nil))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "noun_phrases\tn\tok", lines[0])
	assert.Equal(t, `["coffee","rain"]`+"\t2.5\ttrue", lines[1])
}

func TestWriteTableEscapesSeparatorsInsideCells(t *testing.T) {
	s := newTestServer(t, DefaultConfig())

	input := `{"a":"with\ttab","b":"with\nnewline"}` + "\n"
	rows, err := s.Project(strings.NewReader(input), nil)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, s.WriteTable(&out, rows, nil))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `with\ttab`+"\t"+`with\nnewline`, lines[1])
}

func TestWriteTableUnionColumnsFirstSeenOrder(t *testing.T) {
	s := newTestServer(t, DefaultConfig())

	input := `{"a":1}` + "\n" + `{"b":2,"a":3}` + "\n"
	rows, err := s.Project(strings.NewReader(input), nil)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, s.WriteTable(&out, rows, nil))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	assert.Equal(t, "a\tb", lines[0])
}

func TestAggregateCountsLeafValues(t *testing.T) {
	s := newTestServer(t, DefaultConfig())

	tree, err := s.Aggregate(strings.NewReader(enrichedSample), []string{"language", "source"})
	require.NoError(t, err)

	assert.Equal(t, 2, tree.Count("en", "Web"))
	assert.Equal(t, 1, tree.Count("fr", "App"))
	assert.Equal(t, 3, tree.Total())

	encoded, err := json.Marshal(tree)
	require.NoError(t, err)
	assert.JSONEq(t, `{"en":{"Web":2},"fr":{"App":1}}`, string(encoded))
}

func TestAggregateRequiresFields(t *testing.T) {
	s := newTestServer(t, DefaultConfig())

	_, err := s.Aggregate(strings.NewReader(enrichedSample), nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestAggregateMissingKeyFail(t *testing.T) {
	s := newTestServer(t, Config{InputPath: "-", MissingKey: MissingKeyFail})

	input := `{"language":"en"}` + "\n" + `{"other":1}` + "\n"
	_, err := s.Aggregate(strings.NewReader(input), []string{"language"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMissingField)
}

func TestAggregateMissingKeySkip(t *testing.T) {
	s := newTestServer(t, Config{InputPath: "-", MissingKey: MissingKeySkip})

	input := `{"language":"en"}` + "\n" + `{"other":1}` + "\n" + `{"language":"en"}` + "\n"
	tree, err := s.Aggregate(strings.NewReader(input), []string{"language"})
	require.NoError(t, err)

	assert.Equal(t, 2, tree.Count("en"))
	assert.Equal(t, 2, tree.Total())
}

func TestAggregateValueCoercion(t *testing.T) {
	s := newTestServer(t, DefaultConfig())

	input := `{"n":2,"flag":true,"gap":null}` + "\n" + `{"n":2.5,"flag":false,"gap":null}` + "\n"
	tree, err := s.Aggregate(strings.NewReader(input), []string{"n", "flag", "gap"})
	require.NoError(t, err)

	assert.Equal(t, 1, tree.Count("2", "true", "null"))
	assert.Equal(t, 1, tree.Count("2.5", "false", "null"))
}

func TestNewRejectsBadPolicy(t *testing.T) {
	_, err := New(json.RawMessage(`{"missing_key":"explode"}`), component.Dependencies{})
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	registry := component.NewRegistry()
	require.NoError(t, Register(registry))

	_, ok := registry.GetFactory(componentName)
	assert.True(t, ok)
}
