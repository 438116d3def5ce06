package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/potooio/herald/internal/api"
	"github.com/potooio/herald/internal/types"
)

// outputResult writes the result in the specified format.
func outputResult(out io.Writer, result any, format string) error {
	switch format {
	case "json":
		return outputJSON(out, result)
	case "yaml":
		return outputYAML(out, result)
	case "table", "":
		return outputTable(out, result)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func outputJSON(out io.Writer, result any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func outputYAML(out io.Writer, result any) error {
	data, err := yaml.Marshal(result)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

func outputTable(out io.Writer, result any) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	switch r := result.(type) {
	case api.PreferencesResponse:
		outputPreferencesTable(w, r)
	case api.DigestResponse:
		outputDigestTable(w, r)
	case types.DeliveryResult:
		outputDeliveryTable(w, r)
	case api.EventTypesResponse:
		outputEventTypesTable(w, r)
	default:
		// Fall back to JSON for unknown types
		return outputJSON(out, result)
	}
	return nil
}

func outputPreferencesTable(w io.Writer, r api.PreferencesResponse) {
	source := "stored"
	if !r.Stored {
		source = "defaults"
	}
	fmt.Fprintf(w, "USER:\t%s (%s)\n", r.UserID, source)
	fmt.Fprintf(w, "ENABLED:\t%t\n", r.Preferences.Enabled)
	fmt.Fprintf(w, "FREQUENCY:\t%s\n\n", r.Preferences.Frequency)

	fmt.Fprintln(w, "EVENT TYPE\tCATEGORY\tON")
	for _, k := range types.PreferenceKeys() {
		on, ok := r.Preferences.EventTypes[k.Key]
		fmt.Fprintf(w, "%s\t%s\t%t\n", k.Key, k.Category, !ok || on)
	}
}

func outputDigestTable(w io.Writer, r api.DigestResponse) {
	fmt.Fprintf(w, "USER:\t%s\n", r.UserID)
	fmt.Fprintf(w, "PENDING:\t%d\n", r.Count)
	for _, g := range r.Groups {
		fmt.Fprintf(w, "\n%s (%d)\n", g.Label, len(g.Items))
		for _, e := range g.Items {
			fmt.Fprintf(w, "  %s\t%s\n", e.Timestamp.UTC().Format(time.RFC3339), e.Title)
		}
	}
}

func outputDeliveryTable(w io.Writer, r types.DeliveryResult) {
	status := "SENT"
	switch {
	case r.Skipped:
		status = "SKIPPED"
	case !r.Success:
		status = "FAILED"
	}
	fmt.Fprintf(w, "USER:\t%s\n", r.UserID)
	fmt.Fprintf(w, "STATUS:\t%s\n", status)
	if r.Reason != "" {
		fmt.Fprintf(w, "REASON:\t%s\n", r.Reason)
	}
	if r.MessageID != "" {
		fmt.Fprintf(w, "MESSAGE ID:\t%s\n", r.MessageID)
	}
	if r.Error != "" {
		fmt.Fprintf(w, "ERROR:\t%s\n", r.Error)
	}
}

func outputEventTypesTable(w io.Writer, r api.EventTypesResponse) {
	fmt.Fprintln(w, "EVENT TYPE\tCATEGORY\tLABEL")
	for _, k := range r.PreferenceKeys {
		fmt.Fprintf(w, "%s\t%s\t%s\n", k.Key, k.Category, k.Label)
	}

	if len(r.Variants) > 0 {
		variants := make([]string, 0, len(r.Variants))
		for v := range r.Variants {
			variants = append(variants, string(v))
		}
		sort.Strings(variants)
		fmt.Fprintln(w, "\nVARIANT\tGATED BY")
		for _, v := range variants {
			fmt.Fprintf(w, "%s\t%s\n", v, r.Variants[types.EventType(v)])
		}
	}
}
