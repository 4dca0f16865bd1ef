// package formatter renders browse listings, queues, servers and libraries as text, JSON, YAML, CSV or Markdown
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/desertthunder/plexaa/internal/browse"
	"github.com/desertthunder/plexaa/internal/models"
	"github.com/desertthunder/plexaa/internal/shared"
	"gopkg.in/yaml.v3"
)

// Format is an output encoding.
type Format string

const (
	Text     Format = "text"
	JSON     Format = "json"
	YAML     Format = "yaml"
	CSV      Format = "csv"
	Markdown Format = "markdown"
)

// Formats lists every supported format.
var Formats = []Format{Text, JSON, YAML, CSV, Markdown}

// ParseFormat accepts a format name or a common alias (txt, yml, md).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return Text, nil
	case "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	case "csv":
		return CSV, nil
	case "markdown", "md":
		return Markdown, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

// listing is the shape every renderer reduces to: a title, tabular rows for text and CSV, list
// lines for Markdown, and the records JSON and YAML encode.
type listing struct {
	title   string
	headers []string
	rows    [][]string
	lines   []string
	records any
}

func render(f Format, l listing) ([]byte, error) {
	switch f {
	case JSON:
		data, err := json.MarshalIndent(l.records, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode JSON: %w", err)
		}
		return append(data, '\n'), nil
	case YAML:
		data, err := yaml.Marshal(l.records)
		if err != nil {
			return nil, fmt.Errorf("failed to encode YAML: %w", err)
		}
		return data, nil
	case CSV:
		return renderCSV(l)
	case Markdown:
		return renderMarkdown(l), nil
	case Text, "":
		return renderText(l), nil
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, f)
	}
}

func renderCSV(l listing) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(l.headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, row := range l.rows {
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

func renderMarkdown(l listing) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", l.title)
	if len(l.lines) == 0 {
		buf.WriteString("_Nothing here._\n")
		return buf.Bytes()
	}
	for i, line := range l.lines {
		fmt.Fprintf(&buf, "%d. %s\n", i+1, line)
	}
	return buf.Bytes()
}

func renderText(l listing) []byte {
	var buf bytes.Buffer
	if l.title != "" {
		fmt.Fprintf(&buf, "%s (%d)\n\n", l.title, len(l.rows))
	}
	if len(l.rows) == 0 {
		return buf.Bytes()
	}

	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(l.headers, "\t")))
	for _, row := range l.rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
	return buf.Bytes()
}

type itemRecord struct {
	ID       string `json:"id" yaml:"id"`
	Title    string `json:"title" yaml:"title"`
	Subtitle string `json:"subtitle,omitempty" yaml:"subtitle,omitempty"`
	Kind     string `json:"kind" yaml:"kind"`
	Duration string `json:"duration,omitempty" yaml:"duration,omitempty"`
	Art      string `json:"art,omitempty" yaml:"art,omitempty"`
}

func kind(it browse.Item) string {
	switch {
	case it.Playable:
		return "track"
	case it.Browsable:
		return "folder"
	default:
		return "item"
	}
}

func duration(it browse.Item) string {
	if it.DurationMS <= 0 {
		return ""
	}
	return shared.FormatDuration(it.DurationMS)
}

// FormatItems renders the children of a browse node.
func FormatItems(f Format, title string, items []browse.Item) ([]byte, error) {
	l := listing{
		title:   title,
		headers: []string{"ID", "Title", "Subtitle", "Kind", "Duration"},
	}
	records := make([]itemRecord, 0, len(items))
	for _, it := range items {
		r := itemRecord{
			ID:       it.ID,
			Title:    it.Title,
			Subtitle: it.Subtitle,
			Kind:     kind(it),
			Duration: duration(it),
			Art:      it.ArtURL,
		}
		records = append(records, r)
		l.rows = append(l.rows, []string{r.ID, r.Title, r.Subtitle, r.Kind, r.Duration})
		l.lines = append(l.lines, markdownItem(it))
	}
	l.records = records
	return render(f, l)
}

func markdownItem(it browse.Item) string {
	line := it.Title
	if it.Subtitle != "" {
		line += " - " + it.Subtitle
	}
	if d := duration(it); d != "" {
		line += " [" + d + "]"
	}
	if it.Browsable {
		line += fmt.Sprintf(" (`%s`)", it.ID)
	}
	return line
}

type queueRecord struct {
	ParentID string       `json:"parent_id" yaml:"parent_id"`
	Start    int          `json:"start" yaml:"start"`
	Items    []itemRecord `json:"items" yaml:"items"`
}

// FormatQueue renders a prepared queue, marking the track playback starts from.
func FormatQueue(f Format, q *browse.Queue) ([]byte, error) {
	l := listing{
		title:   "Queue " + q.ParentID,
		headers: []string{"Position", "ID", "Title", "Subtitle", "Duration", "Current"},
	}
	rec := queueRecord{ParentID: q.ParentID, Start: q.Start, Items: make([]itemRecord, 0, len(q.Items))}
	for i, it := range q.Items {
		current := ""
		line := markdownItem(it)
		if i == q.Start {
			current = "▶"
			line = "**" + line + "**"
		}
		rec.Items = append(rec.Items, itemRecord{ID: it.ID, Title: it.Title, Subtitle: it.Subtitle, Kind: kind(it), Duration: duration(it)})
		l.rows = append(l.rows, []string{strconv.Itoa(i + 1), it.ID, it.Title, it.Subtitle, duration(it), current})
		l.lines = append(l.lines, line)
	}
	l.records = rec
	return render(f, l)
}

type serverRecord struct {
	Name             string   `json:"name" yaml:"name"`
	ClientIdentifier string   `json:"client_identifier" yaml:"client_identifier"`
	Owned            bool     `json:"owned" yaml:"owned"`
	Pinned           bool     `json:"pinned" yaml:"pinned"`
	Remote           []string `json:"remote" yaml:"remote"`
}

// FormatServers renders the account's media servers. pinned marks the pinned client identifier.
func FormatServers(f Format, resources []models.Resource, pinned string) ([]byte, error) {
	l := listing{
		title:   "Servers",
		headers: []string{"Name", "Client Identifier", "Owned", "Pinned", "Remote Connections"},
	}
	records := make([]serverRecord, 0, len(resources))
	for _, r := range resources {
		if !r.IsServer() {
			continue
		}
		rec := serverRecord{
			Name:             r.Name,
			ClientIdentifier: r.ClientIdentifier,
			Owned:            r.Owned,
			Pinned:           r.ClientIdentifier == pinned,
			Remote:           []string{},
		}
		for _, c := range r.RemoteConnections() {
			rec.Remote = append(rec.Remote, c.URI)
		}
		records = append(records, rec)

		mark := ""
		if rec.Pinned {
			mark = "*"
		}
		l.rows = append(l.rows, []string{rec.Name, rec.ClientIdentifier, strconv.FormatBool(rec.Owned), mark, strconv.Itoa(len(rec.Remote))})

		line := fmt.Sprintf("%s (`%s`), %d remote connections", rec.Name, rec.ClientIdentifier, len(rec.Remote))
		if rec.Pinned {
			line += " **pinned**"
		}
		l.lines = append(l.lines, line)
	}
	l.records = records
	return render(f, l)
}

type libraryRecord struct {
	Key    string `json:"key" yaml:"key"`
	Title  string `json:"title" yaml:"title"`
	Pinned bool   `json:"pinned" yaml:"pinned"`
}

// FormatLibraries renders music library sections. pinned marks the pinned section key.
func FormatLibraries(f Format, sections []models.Section, pinned string) ([]byte, error) {
	l := listing{
		title:   "Music Libraries",
		headers: []string{"Key", "Title", "Pinned"},
	}
	records := make([]libraryRecord, 0, len(sections))
	for _, s := range sections {
		rec := libraryRecord{Key: s.Key, Title: s.Title, Pinned: s.Key == pinned}
		records = append(records, rec)

		mark, line := "", fmt.Sprintf("%s (`%s`)", s.Title, s.Key)
		if rec.Pinned {
			mark = "*"
			line += " **pinned**"
		}
		l.rows = append(l.rows, []string{s.Key, s.Title, mark})
		l.lines = append(l.lines, line)
	}
	l.records = records
	return render(f, l)
}

type trackRecord struct {
	RatingKey int64  `json:"rating_key" yaml:"rating_key"`
	Title     string `json:"title" yaml:"title"`
	Artist    string `json:"artist" yaml:"artist"`
	Album     string `json:"album,omitempty" yaml:"album,omitempty"`
	Duration  string `json:"duration" yaml:"duration"`
}

type playlistRecord struct {
	RatingKey int64         `json:"rating_key" yaml:"rating_key"`
	Title     string        `json:"title" yaml:"title"`
	Summary   string        `json:"summary,omitempty" yaml:"summary,omitempty"`
	LeafCount int           `json:"leaf_count" yaml:"leaf_count"`
	Tracks    []trackRecord `json:"tracks" yaml:"tracks"`
}

// FormatPlaylist renders a playlist with its tracks, as kept in the offline cache.
func FormatPlaylist(f Format, p models.Playlist, tracks []models.Track) ([]byte, error) {
	l := listing{
		title:   p.Title,
		headers: []string{"ID", "Title", "Artist", "Album", "Duration"},
	}
	rec := playlistRecord{
		RatingKey: int64(p.RatingKey),
		Title:     p.Title,
		Summary:   p.Summary,
		LeafCount: p.LeafCount,
		Tracks:    make([]trackRecord, 0, len(tracks)),
	}
	for _, t := range tracks {
		tr := trackRecord{
			RatingKey: int64(t.RatingKey),
			Title:     t.Title,
			Artist:    t.Artist(),
			Album:     t.ParentTitle,
			Duration:  shared.FormatDuration(t.Duration),
		}
		rec.Tracks = append(rec.Tracks, tr)
		l.rows = append(l.rows, []string{t.RatingKey.String(), tr.Title, tr.Artist, tr.Album, tr.Duration})

		albumPart := ""
		if tr.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", tr.Album)
		}
		l.lines = append(l.lines, fmt.Sprintf("%s - %s%s [%s]", tr.Artist, tr.Title, albumPart, tr.Duration))
	}
	l.records = rec
	return render(f, l)
}

// Extension returns the file extension for f, including the dot.
func Extension(f Format) string {
	switch f {
	case JSON:
		return ".json"
	case YAML:
		return ".yaml"
	case CSV:
		return ".csv"
	case Markdown:
		return ".md"
	default:
		return ".txt"
	}
}

// WriteFile writes rendered data to path, defaulting to base plus the format's extension.
func WriteFile(f Format, data []byte, path, base string) (string, error) {
	if path == "" {
		path = base + Extension(f)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", f, err)
	}
	return path, nil
}
