package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/scenedex/scenedex-agent/internal/config"
	"github.com/scenedex/scenedex-agent/internal/logging"
)

// Prompter abstracts the interactive prompts so the wizard can run under
// test. *SurveyPrompter is the terminal implementation.
type Prompter interface {
	Input(message, defaultValue string) (string, error)
	Password(message string) (string, error)
	Confirm(message string, defaultValue bool) (bool, error)
}

type SurveyPrompter struct{}

func (p *SurveyPrompter) Input(message, defaultValue string) (string, error) {
	result := ""
	prompt := &survey.Input{Message: message, Default: defaultValue}
	if err := survey.AskOne(prompt, &result); err != nil {
		return "", err
	}
	return result, nil
}

func (p *SurveyPrompter) Password(message string) (string, error) {
	result := ""
	prompt := &survey.Password{Message: message}
	if err := survey.AskOne(prompt, &result); err != nil {
		return "", err
	}
	return result, nil
}

func (p *SurveyPrompter) Confirm(message string, defaultValue bool) (bool, error) {
	result := defaultValue
	prompt := &survey.Confirm{Message: message, Default: defaultValue}
	if err := survey.AskOne(prompt, &result); err != nil {
		return false, err
	}
	return result, nil
}

var DefaultPrompter Prompter = &SurveyPrompter{}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create the agent configuration interactively",
	Long: `Walk through the agent configuration: platform API key, index name, data
directory, watch folder, and the optional Postgres and object store sinks.
The result is written to <data-dir>/config.yaml with the current environment
values as prompt defaults.`,
	RunE: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	return runSetupWithPrompter(DefaultPrompter, cfg, os.Stdout)
}

// runSetupWithPrompter drives the wizard. base supplies the prompt defaults
// and may be nil on a first run with no usable environment.
func runSetupWithPrompter(prompter Prompter, base *config.Config, out io.Writer) error {
	if base == nil {
		loaded, err := config.New()
		if err != nil {
			return fmt.Errorf("failed to load defaults: %w", err)
		}
		base = loaded
	}
	next := *base

	fmt.Fprintln(out, "Scenedex agent setup")
	fmt.Fprintln(out)

	keyPrompt := "Platform API key:"
	if next.APIKey != "" {
		keyPrompt = fmt.Sprintf("Platform API key (current %s, empty keeps it):", logging.SanitizeKey(next.APIKey))
	}
	key, err := prompter.Password(keyPrompt)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if key != "" {
		next.APIKey = key
	}
	if next.APIKey == "" {
		return fmt.Errorf("an API key is required")
	}

	name, err := prompter.Input("Index name for this agent?", next.IndexName)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if name != "" {
		next.IndexName = name
	}

	dataDir, err := prompter.Input("Data directory?", next.DataDir)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if dataDir != "" {
		next.DataDir = dataDir
	}

	watch, err := prompter.Confirm("Watch a folder for new videos?", next.WatchDir != "")
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if watch {
		dir, err := prompter.Input("Folder to watch?", next.WatchDir)
		if err != nil {
			return fmt.Errorf("prompt cancelled")
		}
		if dir == "" {
			return fmt.Errorf("a watch folder is required when watching is enabled")
		}
		next.WatchDir = dir
	} else {
		next.WatchDir = ""
	}

	usePg, err := prompter.Confirm("Store embeddings in Postgres (pgvector)?", next.PostgresURL != "")
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if usePg {
		url, err := prompter.Input("Postgres connection URL?", next.PostgresURL)
		if err != nil {
			return fmt.Errorf("prompt cancelled")
		}
		if url == "" {
			return fmt.Errorf("a connection URL is required for the Postgres sink")
		}
		next.PostgresURL = url
	} else {
		next.PostgresURL = ""
	}

	useObj, err := prompter.Confirm("Export embeddings to an S3-compatible object store?", next.ObjectEndpoint != "")
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if useObj {
		if err := promptObjectStore(prompter, &next); err != nil {
			return err
		}
	} else {
		next.ObjectEndpoint = ""
		next.ObjectAccess = ""
		next.ObjectSecret = ""
		next.ObjectBucket = ""
		next.ObjectUseSSL = false
	}

	if err := next.Validate(); err != nil {
		return err
	}

	path := next.ConfigPath()
	if _, err := os.Stat(path); err == nil {
		overwrite, err := prompter.Confirm(path+" already exists. Overwrite?", false)
		if err != nil {
			return fmt.Errorf("prompt cancelled")
		}
		if !overwrite {
			fmt.Fprintln(out, "Setup cancelled.")
			return nil
		}
	}

	if err := next.Save(path); err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Configuration saved to %s\n", path)
	fmt.Fprintln(out, "Run `scenedex serve` to start the agent.")
	return nil
}

func promptObjectStore(prompter Prompter, next *config.Config) error {
	endpoint, err := prompter.Input("Object store endpoint (host:port)?", next.ObjectEndpoint)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if endpoint == "" {
		return fmt.Errorf("an endpoint is required for the object store sink")
	}
	next.ObjectEndpoint = endpoint

	access, err := prompter.Input("Object store access key?", next.ObjectAccess)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if access == "" {
		return fmt.Errorf("an access key is required for the object store sink")
	}
	next.ObjectAccess = access

	secret, err := prompter.Password("Object store secret key:")
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if secret != "" {
		next.ObjectSecret = secret
	}
	if next.ObjectSecret == "" {
		return fmt.Errorf("a secret key is required for the object store sink")
	}

	bucket, err := prompter.Input("Bucket name?", next.ObjectBucket)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if bucket == "" {
		return fmt.Errorf("a bucket name is required for the object store sink")
	}
	next.ObjectBucket = bucket

	useSSL, err := prompter.Confirm("Connect to the object store over TLS?", next.ObjectUseSSL)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	next.ObjectUseSSL = useSSL
	return nil
}
