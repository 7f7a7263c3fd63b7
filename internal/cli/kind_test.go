package cli

import (
	"testing"

	"github.com/cloo-solutions/studyforge/internal/domain"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindValue_Set(t *testing.T) {
	var v KindValue
	require.NoError(t, v.Set(" Quiz "))
	assert.Equal(t, domain.ArtifactKindQuiz, v.Kind())
	assert.Equal(t, "quiz", v.String())
	assert.Equal(t, "kind", v.Type())

	err := v.Set("essay")
	assert.ErrorIs(t, err, domain.ErrInvalidArtifactKind)
	assert.Equal(t, domain.ArtifactKindQuiz, v.Kind())
}

func TestAddKindFlag_Required(t *testing.T) {
	var v KindValue
	cmd := &cobra.Command{Use: "generate", RunE: func(*cobra.Command, []string) error { return nil }}
	AddKindFlag(cmd, &v)

	cmd.SetArgs([]string{})
	assert.Error(t, cmd.Execute())

	cmd.SetArgs([]string{"--kind", "flashcards"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, domain.ArtifactKindFlashcards, v.Kind())
}
