package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Adam-Huang/reflect/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import labels, triggers and memories",
		Long: `Import a document produced by export (json or yaml, from a file or stdin).
With --legacy-dir, read memory_state.json, labels.json and triggers.json instead.
Existing names and ids are skipped. Memories are re-embedded when a provider is configured.`,
		Args: cobra.MaximumNArgs(1),
		Run:  runImport,
	}

	cmd.Flags().String("legacy-dir", "", "Directory holding the old JSON layout")

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	legacyDir, _ := cmd.Flags().GetString("legacy-dir")

	var dump *store.Dump
	if legacyDir != "" {
		d, err := store.ReadLegacyDir(legacyDir)
		if err != nil {
			exitErr("read legacy dir", err)
		}
		dump = d
	} else {
		data, err := readDocument(args)
		if err != nil {
			exitErr("read input", err)
		}
		dump, err = parseDump(data)
		if err != nil {
			exitErr("parse", err)
		}
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	emb, closeEmb, err := newEmbedder()
	if err != nil {
		exitErr("embedder", err)
	}
	defer closeEmb()
	if emb != nil {
		for i := range dump.Memories {
			m := &dump.Memories[i]
			if len(m.Embedding) > 0 && len(m.Embedding) == emb.Dims() {
				continue
			}
			vec, err := emb.Embed(cmd.Context(), m.Summary)
			if err != nil {
				logger.Warn("embedding failed, importing without vector", zap.String("id", m.ID), zap.Error(err))
				continue
			}
			m.Embedding = vec
		}
	}

	res, err := store.Import(cmd.Context(), s, dump)
	if err != nil {
		exitErr("import", err)
	}
	emit(res)
}

func readDocument(args []string) ([]byte, error) {
	if len(args) > 0 {
		return os.ReadFile(args[0])
	}
	return io.ReadAll(os.Stdin)
}

// parseDump accepts json or yaml.
func parseDump(data []byte) (*store.Dump, error) {
	var d store.Dump
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		return &d, nil
	}
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("neither json nor yaml: %w", err)
	}
	return &d, nil
}
