package admin

import (
	"bytes"
	"testing"

	"github.com/cloo-solutions/studyforge/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateCmd_Subcommands(t *testing.T) {
	cmd := MigrateCmd()

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"up", "down"}, names)

	source := cmd.PersistentFlags().Lookup("source")
	require.NotNil(t, source)
	assert.Equal(t, "file://migrations", source.DefValue)
}

func TestGenerateCmd_RequiresKind(t *testing.T) {
	cmd := GenerateCmd()
	cmd.SetArgs([]string{"doc-1"})
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kind")
}

func TestGenerateCmd_RejectsUnknownKind(t *testing.T) {
	cmd := GenerateCmd()
	cmd.SetArgs([]string{"doc-1", "--kind", "essay"})
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid artifact kind")
}

func TestGenerateInput_FromFlags(t *testing.T) {
	cmd := GenerateCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--kind", "quiz", "-n", "4", "--topic", "paging", "--difficulty", "hard", "--temperature", "0"}))

	input := generateInput(cmd, "doc-1", domain.ArtifactKindQuiz)

	assert.Equal(t, "doc-1", input.DocumentID)
	assert.Equal(t, 4, input.NumItems)
	assert.Equal(t, "paging", input.TopicFilter)
	assert.Equal(t, "hard", input.Difficulty)
	require.NotNil(t, input.Temperature)
	assert.Equal(t, float64(0), *input.Temperature)

	cmd = GenerateCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--kind", "plan"}))
	assert.Nil(t, generateInput(cmd, "doc-1", domain.ArtifactKindPlan).Temperature)
}

func TestIngestCmd_MissingFile(t *testing.T) {
	cmd := IngestCmd()
	cmd.SetArgs([]string{"/nonexistent/notes.txt"})
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read")
}

func TestServeCmd_Flags(t *testing.T) {
	cmd := ServeCmd()
	for _, name := range []string{"port", "no-migrate", "no-worker"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
}
