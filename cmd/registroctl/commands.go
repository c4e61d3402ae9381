package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/registro/internal/config"
	"github.com/JonMunkholm/registro/internal/core"
	"github.com/JonMunkholm/registro/internal/gqlupload"
	"github.com/JonMunkholm/registro/internal/wizard"
)

var checkComplete bool

var checkCmd = &cobra.Command{
	Use:   "check TYPE=FILE...",
	Short: "Validate local files against the document registry",
	Example: `  registroctl check dpi_frontal=frente.jpg rtu=rtu.pdf
  registroctl check --complete dpi_frontal=a.jpg dpi_posterior=b.jpg rtu=r.pdf patente_comercio=p.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

var encodeCmd = &cobra.Command{
	Use:   "encode FILE",
	Short: "Print the multipart request a registration file would send",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRegistration(cmd.Context(), cmd.OutOrStdout(), args[0], printTransport{w: cmd.OutOrStdout()})
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit FILE",
	Short: "Send a registration file to the GraphQL endpoint",
	Long: `Send a registration file to the GraphQL endpoint.

The endpoint and token come from GRAPHQL_ENDPOINT and GRAPHQL_AUTH_TOKEN,
read from the environment or a .env file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		client := gqlupload.NewClient(cfg.GraphQL.Endpoint,
			gqlupload.WithTimeout(cfg.GraphQL.Timeout),
			gqlupload.WithBearerToken(cfg.GraphQL.AuthToken),
		)
		return runRegistration(cmd.Context(), cmd.OutOrStdout(), args[0], client)
	},
}

func init() {
	checkCmd.Flags().BoolVar(&checkComplete, "complete", false, "Also require every required document type")
}

// errRejected is returned by check when any file failed validation.
var errRejected = errors.New("one or more documents were rejected")

func runCheck(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	var docs []core.Document
	rejected := false
	for _, arg := range args {
		typ, path, ok := strings.Cut(arg, "=")
		if !ok || path == "" {
			return fmt.Errorf("argument %q: want TYPE=FILE", arg)
		}
		t := core.DocumentTypeID(typ)
		cfg, err := reg.ConfigFor(t)
		if err != nil {
			return err
		}
		file, err := core.ReadFileHandle(path, cfg.MaxSizeBytes)
		if err != nil {
			return err
		}

		res := reg.Validate(file, t)
		printResult(out, fmt.Sprintf("%s (%s, %s, %s)", path, cfg.Label, file.MimeType, core.FormatSize(file.Size)), res)
		rejected = rejected || !res.Valid
		docs = append(docs, core.Document{Type: t, File: file})
	}

	if checkComplete {
		res := reg.ValidateDocumentSet(docs)
		printResult(out, "document set", res)
		rejected = rejected || !res.Valid
	}

	if rejected {
		return errRejected
	}
	return nil
}

func printResult(w io.Writer, subject string, res core.ValidationResult) {
	if res.Valid {
		fmt.Fprintf(w, "ok    %s\n", subject)
		return
	}
	fmt.Fprintf(w, "FAIL  %s\n", subject)
	for _, msg := range res.Errors {
		fmt.Fprintf(w, "      %s\n", msg)
	}
}

// runRegistration loads path, submits it through transport and prints the
// backend's result.
func runRegistration(ctx context.Context, out io.Writer, path string, transport wizard.Transport) error {
	rules, err := loadRules()
	if err != nil {
		return err
	}
	reg, err := loadRegistration(path)
	if err != nil {
		return err
	}

	v, err := reg.submit(ctx, rules, transport)
	if err != nil {
		return err
	}
	if len(v.Result) > 0 && string(v.Result) != "null" {
		fmt.Fprintf(out, "result: %s\n", v.Result)
	}
	return nil
}

// printTransport writes the request parts instead of sending them.
type printTransport struct {
	w io.Writer
}

func (p printTransport) Submit(_ context.Context, payload *gqlupload.Payload) (*gqlupload.Response, error) {
	m, err := payload.MapJSON()
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(p.w, "operations: %s\n", payload.Operations)
	fmt.Fprintf(p.w, "map: %s\n", m)
	for _, part := range payload.Files {
		fmt.Fprintf(p.w, "%d: %s (%s)\n", part.Index, part.File.Filename(), part.File.ContentType())
	}
	return &gqlupload.Response{Data: json.RawMessage("null")}, nil
}
