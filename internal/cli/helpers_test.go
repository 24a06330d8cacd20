package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/fastertools/devlaunch/internal/compose"
	"github.com/fastertools/devlaunch/internal/config"
	"github.com/fastertools/devlaunch/internal/llm"
)

// TestHelperProcess is not a real test. It stands in for docker and ollama.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	for i, arg := range args {
		if arg == "--" {
			args = args[i+1:]
			break
		}
	}
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "No command specified")
		os.Exit(1)
	}

	switch filepath.Base(args[0]) {
	case "docker":
		if len(args) > 2 && args[2] == "version" {
			fmt.Println("v2.29.1")
			os.Exit(0)
		}
		wd, _ := os.Getwd()
		fmt.Printf("ran: %v in %s as %s\n", args[1:], filepath.Base(wd), os.Getenv("COMPOSE_PROJECT_NAME"))
	case "ollama":
		fmt.Println("ollama version is 0.3.0")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s", args[0])
		os.Exit(127)
	}
	os.Exit(0)
}

func helperCommand(ctx context.Context, name string, args ...string) *exec.Cmd {
	cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
	cmd := exec.CommandContext(ctx, os.Args[0], cs...) // #nosec G204 - test helper
	cmd.Env = []string{"GO_WANT_HELPER_PROCESS=1"}
	return cmd
}

// mockExternalCommands routes docker and ollama to TestHelperProcess.
func mockExternalCommands(t *testing.T) {
	t.Helper()
	origCompose, origLLM := compose.ExecCommand, llm.ExecCommand
	compose.ExecCommand = helperCommand
	llm.ExecCommand = func(name string, args ...string) *exec.Cmd {
		return helperCommand(context.Background(), name, args...)
	}
	t.Cleanup(func() {
		compose.ExecCommand = origCompose
		llm.ExecCommand = origLLM
	})
}

// testEnv is an isolated devlaunch setup rooted in a temp dir.
type testEnv struct {
	Root      string
	Catalog   string
	Templates string
	Projects  string
	Out       *bytes.Buffer
}

// setupCLI resets global state and points every path at a temp dir. The
// catalog uses the local storage backend.
func setupCLI(t *testing.T) *testEnv {
	t.Helper()
	keyring.MockInit()

	root := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "config"))
	env := &testEnv{
		Root:      root,
		Catalog:   filepath.Join(root, "catalog"),
		Templates: filepath.Join(root, "templates"),
		Projects:  filepath.Join(root, "projects"),
		Out:       &bytes.Buffer{},
	}

	viper.Reset()
	config.SetDefaults(viper.GetViper())
	viper.Set(config.KeyStorageBackend, config.BackendLocal)
	viper.Set(config.KeyStorageLocalRoot, env.Catalog)
	viper.Set(config.KeyTemplatesDir, env.Templates)
	viper.Set(config.KeyProjectsDir, env.Projects)

	origColor, origErr := colorOutput, errOutput
	origAsk, origInteractive := askOne, isInteractive
	origFormat := outputFormat
	colorOutput, errOutput = env.Out, env.Out
	isInteractive = func() bool { return false }
	outputFormat = "table"
	color.NoColor = true

	t.Cleanup(func() {
		viper.Reset()
		colorOutput, errOutput = origColor, origErr
		askOne, isInteractive = origAsk, origInteractive
		outputFormat = origFormat
		color.NoColor = false
	})
	return env
}

// writeFiles creates files under dir.
func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0750))
		require.NoError(t, os.WriteFile(p, []byte(content), 0600))
	}
}

// seedCatalog writes an indexed catalog with a postgres template.
func (e *testEnv) seedCatalog(t *testing.T) {
	t.Helper()
	writeFiles(t, e.Catalog, map[string]string{
		"tags.yaml":            "- docker\n- postgres\n- nginx\n",
		"index.yaml":           "- name: pg\n  description: PostgreSQL\n  required_inputs: [db_password]\n  tags: [docker, postgres]\n  url: pg/template.yaml\n",
		"pg/template.yaml":     "name: pg\ndescription: PostgreSQL\nrequired_inputs: [db_password]\ntags: [docker, postgres]\n",
		"pg/docker-compose.j2": "services:\n  db:\n    image: postgres\n    environment:\n      POSTGRES_PASSWORD: {{ db_password }}\n",
	})
}

// seedTemplate writes a local template directory.
func (e *testEnv) seedTemplate(t *testing.T) {
	t.Helper()
	writeFiles(t, filepath.Join(e.Templates, "pg"), map[string]string{
		"template.yaml":     "name: pg\ndescription: PostgreSQL\nrequired_inputs: [db_password]\ntags: [docker, postgres]\n",
		"docker-compose.j2": "services:\n  db:\n    image: postgres:{{ version }}\n    environment:\n      POSTGRES_PASSWORD: {{ db_password }}\n",
	})
}

// run executes cmd with args and returns its combined output.
func (e *testEnv) run(cmd *cobra.Command, args ...string) (string, error) {
	cmd.SetOut(e.Out)
	cmd.SetErr(e.Out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return e.Out.String(), err
}

// MockSurveyAskOne answers prompts in order with responses and records
// each prompt's message.
func MockSurveyAskOne(t *testing.T, responses ...interface{}) *[]string {
	t.Helper()
	var asked []string
	askOne = func(p survey.Prompt, resp interface{}, opts ...survey.AskOpt) error {
		switch q := p.(type) {
		case *survey.Input:
			asked = append(asked, q.Message)
		case *survey.Password:
			asked = append(asked, q.Message)
		case *survey.Confirm:
			asked = append(asked, q.Message)
		case *survey.Select:
			asked = append(asked, q.Message)
		}
		if len(responses) == 0 {
			return fmt.Errorf("unexpected prompt %d", len(asked))
		}
		response := responses[0]
		responses = responses[1:]
		switch v := resp.(type) {
		case *string:
			*v = response.(string)
		case *bool:
			*v = response.(bool)
		}
		return nil
	}
	return &asked
}
