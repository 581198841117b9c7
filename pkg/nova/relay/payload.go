package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nova-ai/nova/pkg/nova/channels"
	"golang.org/x/sync/errgroup"
)

// FallbackPrompt is sent when a request would otherwise carry neither text
// nor images.
const FallbackPrompt = "Analyze and describe these image(s) in detail."

// DefaultImageTimeout bounds each image download.
const DefaultImageTimeout = 15 * time.Second

// MimeRule maps a URL extension fragment to a MIME type.
type MimeRule struct {
	Ext  string `yaml:"ext"`
	Type string `yaml:"type"`
}

// DefaultMimeRules is the extension table used when none is configured.
var DefaultMimeRules = []MimeRule{
	{Ext: ".png", Type: "image/png"},
	{Ext: ".gif", Type: "image/gif"},
	{Ext: ".webp", Type: "image/webp"},
}

// DefaultMimeType is used when no rule matches.
const DefaultMimeType = "image/jpeg"

// InferMimeType matches rules as case-insensitive substrings of the whole
// URL, so a ".png" in a query string also counts.
func InferMimeType(url string, rules []MimeRule) string {
	lower := strings.ToLower(url)
	for _, r := range rules {
		if r.Ext != "" && strings.Contains(lower, strings.ToLower(r.Ext)) {
			return r.Type
		}
	}
	return DefaultMimeType
}

// ImagePart is a downloaded image ready to be sent inline.
type ImagePart struct {
	Data     []byte
	MIMEType string
}

// Request is everything the generation backend receives for one run.
type Request struct {
	SystemInstruction string
	HistoryText       string
	UserText          string
	Images            []ImagePart
}

// Prompt returns the text part of the request: the transcript followed by
// the new user line. When neither text nor images are present the fallback
// prompt is returned.
func (r *Request) Prompt() string {
	var text string
	user := strings.TrimSpace(r.UserText)
	switch {
	case r.HistoryText != "" && user != "":
		text = r.HistoryText + "\n" + string(RoleUser) + ": " + r.UserText
	case r.HistoryText != "":
		text = r.HistoryText
	case user != "":
		text = string(RoleUser) + ": " + r.UserText
	}
	if text == "" && len(r.Images) == 0 {
		return FallbackPrompt
	}
	return text
}

// BuildRequest assembles a request from already-resolved parts.
func BuildRequest(system, transcript, userText string, images []ImagePart) *Request {
	return &Request{
		SystemInstruction: system,
		HistoryText:       transcript,
		UserText:          userText,
		Images:            images,
	}
}

// ImageFetcher downloads the bytes behind a URL.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Assembler builds generation requests, downloading referenced images.
type Assembler struct {
	fetcher   ImageFetcher
	timeout   time.Duration
	mimeRules []MimeRule
	logger    *slog.Logger
}

// NewAssembler creates an Assembler. A nil fetcher disables image support.
func NewAssembler(fetcher ImageFetcher, timeout time.Duration, rules []MimeRule, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultImageTimeout
	}
	if len(rules) == 0 {
		rules = DefaultMimeRules
	}
	return &Assembler{
		fetcher:   fetcher,
		timeout:   timeout,
		mimeRules: rules,
		logger:    logger.With("component", "assembler"),
	}
}

// ImageURLs selects the attachments that are sent as image parts: those the
// platform typed as image/*, or untyped ones whose URL matches the MIME
// table.
func (a *Assembler) ImageURLs(atts []channels.Attachment) []string {
	var urls []string
	for _, att := range atts {
		if att.URL == "" {
			continue
		}
		if att.IsImage() || (att.ContentType == "" && a.matchesRule(att.URL)) {
			urls = append(urls, att.URL)
		}
	}
	return urls
}

func (a *Assembler) matchesRule(url string) bool {
	lower := strings.ToLower(url)
	for _, r := range a.mimeRules {
		if r.Ext != "" && strings.Contains(lower, strings.ToLower(r.Ext)) {
			return true
		}
	}
	return false
}

// Assemble resolves images and builds the request.
func (a *Assembler) Assemble(ctx context.Context, system, transcript, userText string, imageURLs []string) *Request {
	return BuildRequest(system, transcript, userText, a.ResolveImages(ctx, imageURLs))
}

// ResolveImages downloads every URL concurrently, each under its own
// timeout. Failed downloads are dropped; survivors keep input order.
func (a *Assembler) ResolveImages(ctx context.Context, urls []string) []ImagePart {
	if len(urls) == 0 || a.fetcher == nil {
		return nil
	}

	slots := make([]*ImagePart, len(urls))
	var g errgroup.Group
	for i, u := range urls {
		g.Go(func() error {
			data, err := a.fetch(ctx, u)
			if err != nil {
				a.logger.Warn("image dropped", "url", u, "error", err)
				return nil
			}
			slots[i] = &ImagePart{Data: data, MIMEType: InferMimeType(u, a.mimeRules)}
			return nil
		})
	}
	_ = g.Wait()

	parts := make([]ImagePart, 0, len(urls))
	for _, p := range slots {
		if p != nil {
			parts = append(parts, *p)
		}
	}
	return parts
}

func (a *Assembler) fetch(ctx context.Context, url string) (data []byte, err error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetch panicked: %v", r)
		}
	}()

	data, err = a.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image body")
	}
	return data, nil
}
