package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/fivetwenty-io/amocrm/internal/constants"
	"github.com/fivetwenty-io/amocrm/pkg/amocrm"
	"github.com/fivetwenty-io/amocrm/pkg/fields"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Common string constants used throughout the commands package.
const (
	configDirName = ".amocrm"
	configFile    = "config.yml"
	tokenFile     = "token.yml"

	Yes = "yes"
	No  = "no"
)

// Common static errors used throughout the commands package.
var (
	ErrInvalidID         = errors.New("invalid ID, expected a positive integer")
	ErrSubdomainRequired = errors.New("subdomain is required")
	ErrCodeRequired      = errors.New("authorization code is required")
)

// ConfigDir returns the directory holding the CLI configuration.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, configDirName), nil
}

// configFilePath returns the config file in use, or the default location.
func configFilePath() (string, error) {
	if used := viper.ConfigFileUsed(); used != "" {
		return used, nil
	}

	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, configFile), nil
}

// tokenFilePath keeps the OAuth2 token pair next to the config file.
func tokenFilePath() (string, error) {
	path, err := configFilePath()
	if err != nil {
		return "", err
	}

	return filepath.Join(filepath.Dir(path), tokenFile), nil
}

// PrintError writes err to stderr.
func PrintError(err error) {
	_, _ = fmt.Fprintln(os.Stderr, colorize(color.FgRed, "Error:"), err)
}

func printSuccess(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintln(w, colorize(color.FgGreen, "OK"), fmt.Sprintf(format, args...))
}

func colorize(attr color.Attribute, s string) string {
	if viper.GetBool("no_color") {
		return s
	}

	return color.New(attr).Sprint(s)
}

// outputResult writes data as JSON or YAML, or calls table for the default
// table format.
func outputResult(w io.Writer, data any, table func() error) error {
	switch viper.GetString("output") {
	case constants.FormatJSON:
		return writeJSON(w, data)
	case constants.FormatYAML:
		return writeYAML(w, data)
	case constants.FormatTable, "":
		return table()
	default:
		return constants.ErrInvalidOutputFormat
	}
}

func writeJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", strings.Repeat(" ", constants.JSONIndentSize))

	err := encoder.Encode(data)
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}

func writeYAML(w io.Writer, data any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(constants.JSONIndentSize)

	err := encoder.Encode(data)
	if err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return encoder.Close()
}

func newTable(w io.Writer, headers ...any) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.Header(headers...)

	return table
}

func renderTable(table *tablewriter.Table) error {
	err := table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

func parseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%q: %w", arg, ErrInvalidID)
	}

	return id, nil
}

func parseEntity(arg string) (amocrm.EntityType, error) {
	entity := amocrm.EntityType(strings.ToLower(arg))
	switch entity {
	case amocrm.EntityLeads, amocrm.EntityContacts, amocrm.EntityCompanies, amocrm.EntityCustomers:
		return entity, nil
	default:
		return "", fmt.Errorf("%q: %w", arg, constants.ErrInvalidEntityType)
	}
}

func formatTimestamp(ts amocrm.Timestamp) string {
	if ts == 0 {
		return constants.NotAvailable
	}

	return humanize.Time(ts.Time())
}

func formatPrice(price int) string {
	return humanize.Comma(int64(price))
}

func formatBool(b bool) string {
	if b {
		return Yes
	}

	return No
}

func formatStatus(status *amocrm.Status) string {
	if status == nil {
		return constants.NotAvailable
	}

	switch status.ID {
	case amocrm.StatusSuccess:
		return colorize(color.FgGreen, status.Name)
	case amocrm.StatusLost:
		return colorize(color.FgRed, status.Name)
	default:
		return status.Name
	}
}

// formatFieldType turns wire tags such as "date_time" into "Date Time".
func formatFieldType(fieldType string) string {
	if fieldType == "" {
		return constants.NotAvailable
	}

	return cases.Title(language.English).String(strings.ReplaceAll(fieldType, "_", " "))
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}

	return string(runes[:n-1]) + "…"
}

func formatTags(tags []amocrm.Tag) string {
	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		names = append(names, tag.Name)
	}

	return strings.Join(names, ", ")
}

func formatRefs(refs []amocrm.EntityRef) string {
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		id := strconv.Itoa(ref.ID)
		if ref.IsMain {
			id += " (main)"
		}

		ids = append(ids, id)
	}

	return strings.Join(ids, ", ")
}

// formatFieldValues renders the values of one custom field entry.
func formatFieldValues(field fields.Field) string {
	parts := make([]string, 0, len(field.Values))
	for _, value := range field.Values {
		parts = append(parts, formatFieldValue(field.Type(), value))
	}

	return strings.Join(parts, ", ")
}

func formatFieldValue(fieldType string, value fields.Value) string {
	var text string

	switch v := value.Value.(type) {
	case nil:
		text = ""
	case *fields.File:
		text = v.FileName
	case string:
		text = v
	case bool:
		text = strconv.FormatBool(v)
	case int64:
		text = formatUnixField(fieldType, v)
	case float64:
		text = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		text = fmt.Sprint(v)
	}

	if value.EnumCode != nil && *value.EnumCode != "" {
		text += " (" + *value.EnumCode + ")"
	}

	return text
}

func formatUnixField(fieldType string, v int64) string {
	switch fieldType {
	case fields.TypeDate, fields.TypeBirthday:
		return time.Unix(v, 0).UTC().Format(time.DateOnly)
	case fields.TypeDateTime:
		return time.Unix(v, 0).UTC().Format(time.DateTime)
	default:
		return strconv.FormatInt(v, 10)
	}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}

	return *p
}

// renderCustomFields prints the custom field entries of a record.
func renderCustomFields(w io.Writer, list []fields.Field) error {
	if len(list) == 0 {
		return nil
	}

	_, _ = fmt.Fprintln(w, "\nCustom fields:")

	table := newTable(w, "ID", "Name", "Code", "Type", "Values")

	for _, field := range list {
		id := constants.NotAvailable
		if field.FieldID != nil {
			id = strconv.Itoa(*field.FieldID)
		}

		_ = table.Append([]string{
			id,
			deref(field.FieldName),
			deref(field.FieldCode),
			formatFieldType(field.Type()),
			truncate(formatFieldValues(field), constants.StringTruncationLength),
		})
	}

	return renderTable(table)
}
