package render

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	htmltmpl "html/template"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/potooio/herald/internal/types"
)

// ErrUnknownEventType is returned when the catalog has no entry for an event type.
var ErrUnknownEventType = errors.New("unknown event type")

//go:embed templates/*.tmpl
var templateFS embed.FS

const stampLayout = "Jan 2, 2006 15:04"

// Options configures the Renderer.
type Options struct {
	// Product is the product name shown in email footers.
	Product string
	// SubjectPrefix is prepended to every subject, e.g. "[Tracker] ".
	SubjectPrefix string
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{Product: "Herald"}
}

type compiled struct {
	subject  *template.Template
	headline *template.Template
	body     *template.Template
	action   string
}

// Renderer renders catalog entries and digests. It is safe for concurrent use.
type Renderer struct {
	opts       Options
	entries    map[types.EventType]compiled
	layoutHTML *htmltmpl.Template
	layoutText *template.Template
	digestHTML *htmltmpl.Template
	digestText *template.Template
}

// layoutData is the input to the single-event layouts.
type layoutData struct {
	Subject  string
	Headline string
	Body     string
	URL      string
	Action   string
	Product  string
}

// digestData is the input to the digest layouts.
type digestData struct {
	Subject string
	View    types.DigestView
	Product string
}

// NewRenderer parses the catalog and layouts. A template error here is a
// programming error and fails construction.
func NewRenderer(opts Options) (*Renderer, error) {
	if opts.Product == "" {
		opts.Product = DefaultOptions().Product
	}
	r := &Renderer{
		opts:    opts,
		entries: make(map[types.EventType]compiled, len(catalog)),
	}

	for et, e := range catalog {
		c := compiled{action: e.Action}
		var err error
		if c.subject, err = parseText(string(et)+".subject", e.Subject); err != nil {
			return nil, err
		}
		if c.headline, err = parseText(string(et)+".headline", e.Headline); err != nil {
			return nil, err
		}
		if c.body, err = parseText(string(et)+".body", e.Body); err != nil {
			return nil, err
		}
		r.entries[et] = c
	}

	funcs := map[string]any{
		"stamp": func(t time.Time) string { return t.Format(stampLayout) },
	}

	var err error
	if r.layoutHTML, err = htmltmpl.ParseFS(templateFS, "templates/layout.html.tmpl"); err != nil {
		return nil, fmt.Errorf("parse html layout: %w", err)
	}
	if r.layoutText, err = template.ParseFS(templateFS, "templates/layout.txt.tmpl"); err != nil {
		return nil, fmt.Errorf("parse text layout: %w", err)
	}
	if r.digestHTML, err = htmltmpl.New("digest.html.tmpl").Funcs(funcs).ParseFS(templateFS, "templates/digest.html.tmpl"); err != nil {
		return nil, fmt.Errorf("parse html digest: %w", err)
	}
	if r.digestText, err = template.New("digest.txt.tmpl").Funcs(funcs).ParseFS(templateFS, "templates/digest.txt.tmpl"); err != nil {
		return nil, fmt.Errorf("parse text digest: %w", err)
	}
	return r, nil
}

func parseText(name, src string) (*template.Template, error) {
	t, err := template.New(name).Option("missingkey=zero").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return t, nil
}

// Render implements types.Renderer.
func (r *Renderer) Render(eventType types.EventType, params types.Params) (types.Message, error) {
	c, ok := r.entries[eventType]
	if !ok {
		return types.Message{}, fmt.Errorf("%w: %q", ErrUnknownEventType, eventType)
	}
	data := stringify(params)

	subject, err := execText(c.subject, data)
	if err != nil {
		return types.Message{}, err
	}
	headline, err := execText(c.headline, data)
	if err != nil {
		return types.Message{}, err
	}
	body, err := execText(c.body, data)
	if err != nil {
		return types.Message{}, err
	}

	ld := layoutData{
		Subject:  r.opts.SubjectPrefix + oneLine(subject),
		Headline: headline,
		Body:     body,
		URL:      data[types.ParamURL],
		Action:   c.action,
		Product:  r.opts.Product,
	}
	return r.layout(ld.Subject, r.layoutHTML, r.layoutText, ld)
}

// RenderDigest implements types.Renderer.
func (r *Renderer) RenderDigest(view types.DigestView) (types.Message, error) {
	if view.ItemCount() == 0 {
		return types.Message{}, errors.New("digest has no entries")
	}
	for i := range view.Groups {
		if view.Groups[i].Label == "" {
			view.Groups[i].Label = Label(view.Groups[i].Type)
		}
	}

	period := "Daily"
	if view.Frequency == types.FrequencyWeeklyDigest {
		period = "Weekly"
	}
	noun := "updates"
	if view.ItemCount() == 1 {
		noun = "update"
	}
	subject := r.opts.SubjectPrefix + fmt.Sprintf("%s digest: %d %s", period, view.ItemCount(), noun)

	return r.layout(subject, r.digestHTML, r.digestText, digestData{
		Subject: subject,
		View:    view,
		Product: r.opts.Product,
	})
}

func (r *Renderer) layout(subject string, h *htmltmpl.Template, t *template.Template, data any) (types.Message, error) {
	var hb, tb bytes.Buffer
	if err := h.Execute(&hb, data); err != nil {
		return types.Message{}, fmt.Errorf("execute html layout: %w", err)
	}
	if err := t.Execute(&tb, data); err != nil {
		return types.Message{}, fmt.Errorf("execute text layout: %w", err)
	}
	return types.Message{Subject: subject, HTML: hb.String(), Text: tb.String()}, nil
}

// Label returns the human-readable section label for an event type.
func Label(t types.EventType) string {
	key := t.PreferenceKey()
	for _, k := range types.PreferenceKeys() {
		if k.Key == key {
			return k.Label
		}
	}
	return string(t)
}

func execText(t *template.Template, data map[string]string) (string, error) {
	var b bytes.Buffer
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("execute %s: %w", t.Name(), err)
	}
	return b.String(), nil
}

// stringify flattens params so that missing keys render as "".
func stringify(p types.Params) map[string]string {
	out := make(map[string]string, len(p))
	for k, v := range p {
		switch val := v.(type) {
		case nil:
		case string:
			out[k] = val
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case time.Time:
			out[k] = val.Format("Jan 2, 2006")
		case fmt.Stringer:
			out[k] = val.String()
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

// oneLine collapses whitespace so a subject can never carry header line breaks.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
