// Package providers implements the providers command, which lists the
// configured MLS providers.
package providers

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/openlistings/mlsync/cmd/application"
	"github.com/openlistings/mlsync/internal/cmd/emoji"
	"github.com/openlistings/mlsync/internal/cmd/output"
	"github.com/openlistings/mlsync/internal/config"
	"github.com/openlistings/mlsync/pkg/errors"
)

// NewCommand creates the providers command using app context.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "providers [provider-id]",
		GroupID: "core",
		Short:   "List configured MLS providers",
		Aliases: []string{"provider"},
		Args:    cobra.MaximumNArgs(1),
		Long: `Providers lists the MLS providers from the project configuration:
their auth family, endpoint, schedule, and quality settings.

Credential values are never shown; only the names of the environment
variables they resolve from.`,
		Example: `  mlsync providers                         # List all providers
  mlsync providers metro-mls               # Show one provider in full
  mlsync providers -o wide                 # Include endpoints and credential envs
  mlsync providers -o yaml                 # Machine-readable`,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := app.ProjectConfig()
			if err != nil {
				return err
			}

			if len(args) == 1 {
				return showProviderDetails(app, project, args[0])
			}
			return listProviders(app, project)
		},
	}

	return cmd
}

// listProviders renders every configured provider.
func listProviders(app application.Application, project *config.File) error {
	providers := make([]config.Provider, len(project.Providers))
	copy(providers, project.Providers)
	sort.Slice(providers, func(i, j int) bool { return providers[i].ID < providers[j].ID })

	format := output.DetectFormat(app.OutputFormat())
	formatter := output.NewFormatter(format)

	var outputData any
	switch format {
	case output.FormatJSON, output.FormatYAML:
		outputData = providers
	default:
		wide := format == output.FormatWide
		headers := []string{"ID", "Name", "Family", "Enabled", "Interval", "Page Size", "Rate/Min", "Floor"}
		if wide {
			headers = append(headers, "Base URL", "Credential Envs")
		}
		rows := make([][]string, 0, len(providers))
		for _, p := range providers {
			enabled := emoji.Optional
			if p.Enabled {
				enabled = emoji.Success
			}
			row := []string{
				p.ID,
				p.Name,
				p.Family,
				enabled,
				formatInterval(p.SyncInterval, project.Schedule.DefaultInterval),
				formatOrDefault(p.PageSize),
				formatOrDefault(p.RateLimitPerMinute),
				formatOrDefault(p.QualityFloor),
			}
			if wide {
				row = append(row, p.BaseURL, credentialEnvs(p.Credentials))
			}
			rows = append(rows, row)
		}
		outputData = output.Data{
			Headers: headers,
			Rows:    rows,
		}
	}

	return formatter.Format(os.Stdout, outputData)
}

// showProviderDetails renders one provider in full.
func showProviderDetails(app application.Application, project *config.File, id string) error {
	provider, ok := project.Provider(id)
	if !ok {
		return errors.NewNotFoundError("provider", id)
	}

	format := output.DetectFormat(app.OutputFormat())
	formatter := output.NewFormatter(format)

	if format == output.FormatJSON || format == output.FormatYAML {
		return formatter.Format(os.Stdout, provider)
	}

	enabled := emoji.Optional
	if provider.Enabled {
		enabled = emoji.Success
	}
	rows := [][]string{
		{"ID", string(provider.ID)},
		{"Name", provider.Name},
		{"Family", string(provider.Family)},
		{"Base URL", provider.BaseURL},
		{"Enabled", enabled},
		{"Sync Interval", formatInterval(provider.SyncInterval, project.Schedule.DefaultInterval)},
		{"Page Size", formatOrDefault(provider.PageSize)},
		{"Rate Limit/Min", formatOrDefault(provider.RateLimitPerMinute)},
		{"Max Retries", formatOrDefault(provider.MaxRetries)},
		{"Quality Floor", formatOrDefault(provider.QualityFloor)},
		{"Exclude Below Floor", fmt.Sprintf("%t", provider.ExcludeBelowFloor)},
		{"Username Env", orDash(provider.Credentials.UsernameEnv)},
		{"Password Env", orDash(provider.Credentials.PasswordEnv)},
		{"Client ID Env", orDash(provider.Credentials.ClientIDEnv)},
		{"Client Secret Env", orDash(provider.Credentials.ClientSecretEnv)},
	}

	return formatter.Format(os.Stdout, output.Data{
		Headers: []string{"Field", "Value"},
		Rows:    rows,
	})
}

// formatInterval shows the provider's effective schedule interval.
func formatInterval(interval, fallback time.Duration) string {
	if interval <= 0 {
		interval = fallback
	}
	if interval <= 0 {
		return "default"
	}
	return interval.String()
}

// formatOrDefault renders zero-valued settings as "default".
func formatOrDefault(n int) string {
	if n <= 0 {
		return "default"
	}
	return fmt.Sprintf("%d", n)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// credentialEnvs lists the environment variables a provider's
// credentials resolve from, never the values.
func credentialEnvs(c config.CredentialsConfig) string {
	envs := make([]string, 0, 4)
	for _, env := range []string{c.UsernameEnv, c.PasswordEnv, c.ClientIDEnv, c.ClientSecretEnv} {
		if env != "" {
			envs = append(envs, env)
		}
	}
	if len(envs) == 0 {
		return "-"
	}
	return strings.Join(envs, ",")
}
