package relay

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/nova-ai/nova/pkg/nova/channels"
)

// DefaultPlaceholders stand in for the user being replied to.
var DefaultPlaceholders = []string{"@user", "<@user>", "{user}", "{mention}", "@mention"}

// DefaultReserved are platform broadcast keywords that must never be
// converted into member mentions.
var DefaultReserved = []string{"everyone", "here"}

// namePattern matches "@" followed by 2-32 letters, marks, digits,
// underscores or hyphens, in any script.
var namePattern = regexp.MustCompile(`@([\p{L}\p{M}\p{N}_-]{2,32})`)

// MentionContext is the read-only snapshot used while resolving one answer.
type MentionContext struct {
	// TargetID is the author of the message being answered.
	TargetID string

	// Members is the guild directory in platform enumeration order.
	Members []channels.Member

	// HasDirectory is false for direct messages; name resolution is
	// skipped then.
	HasDirectory bool
}

// MentionSyntax renders the platform mention for a user ID.
func MentionSyntax(id string) string {
	return "<@" + id + ">"
}

// MentionResolver rewrites placeholder tokens and @name patterns in
// generated text into platform mentions. It never fails.
type MentionResolver struct {
	placeholders *regexp.Regexp
	reserved     map[string]struct{}
}

// NewMentionResolver compiles a resolver for the given placeholder tokens
// and reserved keywords. Empty slices fall back to the defaults.
func NewMentionResolver(placeholders, reserved []string) *MentionResolver {
	if len(placeholders) == 0 {
		placeholders = DefaultPlaceholders
	}
	if len(reserved) == 0 {
		reserved = DefaultReserved
	}

	r := &MentionResolver{reserved: make(map[string]struct{}, len(reserved))}
	for _, k := range reserved {
		r.reserved[strings.ToLower(k)] = struct{}{}
	}
	r.placeholders = compilePlaceholders(placeholders)
	return r
}

// compilePlaceholders builds one alternation, longest token first, so that
// "<@user>" wins over "@user" at the same position.
func compilePlaceholders(tokens []string) *regexp.Regexp {
	sorted := append([]string(nil), tokens...)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	alts := make([]string, 0, len(sorted))
	for _, tok := range sorted {
		if tok == "" {
			continue
		}
		alts = append(alts, regexp.QuoteMeta(tok))
	}
	if len(alts) == 0 {
		return nil
	}
	return regexp.MustCompile(strings.Join(alts, "|"))
}

// isNameRune reports whether r can continue a name. Go's \b is ASCII-only,
// so word boundaries are checked by hand.
func isNameRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsMark(r) || unicode.IsNumber(r)
}

// replacePlaceholders substitutes every token occurrence. A token ending in
// a name character only matches when the next character cannot continue a
// name, so "@username" is not read as "@user" + "name".
func (r *MentionResolver) replacePlaceholders(text, mention string) string {
	matches := r.placeholders.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		tail, _ := utf8.DecodeLastRuneInString(text[start:end])
		if isNameRune(tail) && end < len(text) {
			if next, _ := utf8.DecodeRuneInString(text[end:]); isNameRune(next) {
				continue
			}
		}
		b.WriteString(text[last:start])
		b.WriteString(mention)
		last = end
	}
	b.WriteString(text[last:])
	return b.String()
}

// Resolve applies placeholder substitution and, when a directory is
// available, @name resolution.
func (r *MentionResolver) Resolve(text string, mc MentionContext) string {
	if r.placeholders != nil && mc.TargetID != "" {
		text = r.replacePlaceholders(text, MentionSyntax(mc.TargetID))
	}
	if !mc.HasDirectory || len(mc.Members) == 0 {
		return text
	}
	return r.resolveNames(text, directory(mc.Members))
}

func (r *MentionResolver) resolveNames(text string, dir map[string]string) string {
	matches := namePattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		name := text[m[2]:m[3]]

		// Part of an existing "<@id>" mention.
		if start > 0 && text[start-1] == '<' {
			continue
		}
		lower := strings.ToLower(name)
		if _, ok := r.reserved[lower]; ok {
			continue
		}
		id, ok := dir[lower]
		if !ok {
			continue
		}
		b.WriteString(text[last:start])
		b.WriteString(MentionSyntax(id))
		last = end
	}
	b.WriteString(text[last:])
	return b.String()
}

// directory builds a lowercase name → id table. Each member contributes its
// display name then its username; earlier members win collisions.
func directory(members []channels.Member) map[string]string {
	dir := make(map[string]string, len(members)*2)
	add := func(name, id string) {
		if name == "" {
			return
		}
		key := strings.ToLower(name)
		if _, taken := dir[key]; !taken {
			dir[key] = id
		}
	}
	for _, m := range members {
		add(m.DisplayName, m.ID)
		add(m.Username, m.ID)
	}
	return dir
}
