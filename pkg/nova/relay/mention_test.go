package relay

import (
	"testing"

	"github.com/nova-ai/nova/pkg/nova/channels"
	"github.com/stretchr/testify/assert"
)

var testMembers = []channels.Member{
	{ID: "100", DisplayName: "Alice", Username: "alice_w"},
	{ID: "200", DisplayName: "Bob-Builder", Username: "bob"},
	{ID: "300", DisplayName: "bob", Username: "robert"},
	{ID: "400", DisplayName: "José", Username: "jose"},
	{ID: "500", DisplayName: "Zoë", Username: "zoe"},
	{ID: "600", DisplayName: "Søren-Ålund", Username: "soren"},
}

func TestMentionResolver_Placeholders(t *testing.T) {
	t.Parallel()

	r := NewMentionResolver(nil, nil)
	ctx := MentionContext{TargetID: "42"}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"at user", "Ask @user for help", "Ask <@42> for help"},
		{"angle user", "hi <@user>!", "hi <@42>!"},
		{"brace user", "thanks {user}", "thanks <@42>"},
		{"brace mention", "{mention}, done", "<@42>, done"},
		{"at mention", "@mention see above", "<@42> see above"},
		{"repeated", "@user and @user", "<@42> and <@42>"},
		{"longer name untouched", "@username stays", "@username stays"},
		{"accented continuation untouched", "@useré stays", "@useré stays"},
		{"hyphen ends placeholder", "@user-friendly", "<@42>-friendly"},
		{"punctuation ends placeholder", "hi @user.", "hi <@42>."},
		{"no placeholders", "plain text", "plain text"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, r.Resolve(tt.in, ctx))
		})
	}
}

func TestMentionResolver_Idempotent(t *testing.T) {
	t.Parallel()

	r := NewMentionResolver(nil, nil)
	ctx := MentionContext{TargetID: "42", Members: testMembers, HasDirectory: true}

	once := r.Resolve("Ask @user and @alice about <@user>", ctx)
	assert.Contains(t, once, "<@42>")
	assert.Equal(t, once, r.Resolve(once, ctx))
}

func TestMentionResolver_Names(t *testing.T) {
	t.Parallel()

	r := NewMentionResolver(nil, nil)
	ctx := MentionContext{TargetID: "42", Members: testMembers, HasDirectory: true}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"display name", "ping @Alice", "ping <@100>"},
		{"case insensitive", "ping @ALICE", "ping <@100>"},
		{"username", "ping @alice_w", "ping <@100>"},
		{"hyphen", "ping @bob-builder", "ping <@200>"},
		{"first member wins", "ping @bob", "ping <@200>"},
		{"unknown", "ping @nobody", "ping @nobody"},
		{"everyone", "@everyone check this", "@everyone check this"},
		{"here", "@Here now", "@Here now"},
		{"too short", "@a hi", "@a hi"},
		{"multiple", "@alice and @robert", "<@100> and <@300>"},
		{"accented names", "ping @José and @Zoë please", "ping <@400> and <@500> please"},
		{"accented case insensitive", "@JOSÉ!", "<@400>!"},
		{"non-ascii hyphen", "hi @søren-ålund.", "hi <@600>."},
		{"accented prefix is not a match", "@Josép", "@Josép"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, r.Resolve(tt.in, ctx))
		})
	}
}

func TestMentionResolver_NoDirectory(t *testing.T) {
	t.Parallel()

	r := NewMentionResolver(nil, nil)
	ctx := MentionContext{TargetID: "42", Members: testMembers, HasDirectory: false}

	assert.Equal(t, "<@42> and @alice", r.Resolve("@user and @alice", ctx))
}

func TestMentionResolver_CustomTokens(t *testing.T) {
	t.Parallel()

	r := NewMentionResolver([]string{"[[asker]]"}, []string{"all"})
	ctx := MentionContext{
		TargetID:     "7",
		Members:      []channels.Member{{ID: "9", DisplayName: "all"}},
		HasDirectory: true,
	}

	assert.Equal(t, "hey <@7>, @all", r.Resolve("hey [[asker]], @all", ctx))
	assert.Equal(t, "@user", r.Resolve("@user", ctx))
}
