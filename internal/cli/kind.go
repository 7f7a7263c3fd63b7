package cli

import (
	"strings"

	"github.com/cloo-solutions/studyforge/internal/domain"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// KindValue is a pflag.Value accepting only supported artifact kinds.
type KindValue struct {
	kind domain.ArtifactKind
}

var _ pflag.Value = (*KindValue)(nil)

func (k *KindValue) String() string { return string(k.kind) }

func (k *KindValue) Set(s string) error {
	kind, err := domain.ParseArtifactKind(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return err
	}
	k.kind = kind
	return nil
}

func (k *KindValue) Type() string { return "kind" }

func (k *KindValue) Kind() domain.ArtifactKind { return k.kind }

// Values lists the accepted inputs for --help-json.
func (k *KindValue) Values() []string { return KindNames() }

// KindNames lists the accepted values for help text and completion.
func KindNames() []string {
	names := make([]string, len(domain.ArtifactKinds))
	for i, kind := range domain.ArtifactKinds {
		names[i] = string(kind)
	}
	return names
}

// AddKindFlag registers a required --kind flag with shell completion.
func AddKindFlag(cmd *cobra.Command, value *KindValue) {
	cmd.Flags().VarP(value, "kind", "k", "Artifact kind ("+strings.Join(KindNames(), ", ")+")")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.RegisterFlagCompletionFunc("kind", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return KindNames(), cobra.ShellCompDirectiveNoFileComp
	})
}
