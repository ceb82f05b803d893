package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bitfsorg/sealvault-go/vault"
)

func newUploadCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file> [epochs]",
		Short: "Publish a local file",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			epochs := vault.DefaultEpochs
			if len(args) == 2 {
				n, err := strconv.Atoi(args[1])
				if err != nil || n < 1 {
					return fmt.Errorf("%w: epochs must be a positive integer, got %q", vault.ErrValidation, args[1])
				}
				epochs = n
			}
			return g.withEngine(cmd.Context(), func(rt *runtime) error {
				res, err := rt.engine.UploadFile(cmd.Context(), args[0], epochs)
				if err != nil {
					return err
				}
				return printUpload(res, g.jsonOutput)
			})
		},
	}
}

type putTextOptions struct {
	encrypt  bool
	password string
}

func newPutTextCmd(g *globals) *cobra.Command {
	opts := &putTextOptions{}
	cmd := &cobra.Command{
		Use:   "put-text [text]",
		Short: "Publish text, read from the argument or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			return g.withEngine(cmd.Context(), func(rt *runtime) error {
				res, err := rt.engine.UploadText(cmd.Context(), text, opts.encrypt, opts.password)
				if err != nil {
					return err
				}
				return printUpload(res, g.jsonOutput)
			})
		},
	}
	cmd.Flags().BoolVar(&opts.encrypt, "encrypt", false, "threshold-encrypt the text")
	cmd.Flags().StringVar(&opts.password, "password", "", "password recorded with the fallback encoding")
	return cmd
}

func readText(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return "", fmt.Errorf("%w: no text given", vault.ErrValidation)
	}
	return text, nil
}

// readDescriptor accepts inline descriptor JSON or @path.
func readDescriptor(v string) ([]byte, error) {
	if !strings.HasPrefix(v, "@") {
		return []byte(v), nil
	}
	data, err := os.ReadFile(v[1:])
	if err != nil {
		return nil, fmt.Errorf("%w: read descriptor: %w", vault.ErrValidation, err)
	}
	return data, nil
}
