package multimodal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/sunflowermm/XRK-Yunzai-sub003/llm"
	"github.com/sunflowermm/XRK-Yunzai-sub003/llm/config"
)

var bareB64 = strings.Repeat("iVBORw0KGgo", 8)

func TestNormalize_MultimodalOrdersReplyImagesFirst(t *testing.T) {
	msgs := []llm.Message{{
		Role:    llm.RoleUser,
		Content: llm.RichContent("look", []string{"https://a/img.png"}, []string{"https://a/reply.png"}),
	}}

	out := Normalize(msgs, config.ModeMultimodal, "")
	require.True(t, out[0].Content.IsParts())
	parts := out[0].Content.Parts
	require.Len(t, parts, 3)
	assert.Equal(t, "look", parts[0].Text)
	assert.Equal(t, "https://a/reply.png", parts[1].ImageURL.URL)
	assert.Equal(t, "https://a/img.png", parts[2].ImageURL.URL)
}

func TestNormalize_WrapsBareBase64(t *testing.T) {
	msgs := []llm.Message{{Role: llm.RoleUser, Content: llm.RichContent("", []string{bareB64}, nil)}}

	out := Normalize(msgs, config.ModeMultimodal, "image/jpeg")
	require.Len(t, out[0].Content.Parts, 1)
	assert.Equal(t, "data:image/jpeg;base64,"+bareB64, out[0].Content.Parts[0].ImageURL.URL)
}

func TestNormalize_TextOnly(t *testing.T) {
	msgs := []llm.Message{{
		Role:    llm.RoleUser,
		Content: llm.RichContent("hello", []string{"https://a/img.png"}, []string{"https://a/reply.png"}),
	}}

	out := Normalize(msgs, config.ModeTextOnly, "")
	assert.Equal(t, "hello [reply-image:https://a/reply.png] [image:https://a/img.png]", out[0].Content.Text)
	assert.False(t, out[0].Content.IsParts())
}

func TestNormalize_TextOnlyFlattensParts(t *testing.T) {
	msgs := []llm.Message{{
		Role:    llm.RoleUser,
		Content: llm.PartsContent(llm.TextPart("a"), llm.ImagePart("data:image/gif;base64,R0lG")),
	}}
	out := Normalize(msgs, config.ModeTextOnly, "")
	assert.Equal(t, "a [image:inline image/gif]", out[0].Content.Text)
}

func TestNormalize_ToolMessagesPassThrough(t *testing.T) {
	tool := llm.ToolMessage("call_1", "search", `{"ok":true}`)
	tool.Content = llm.RichContent("raw", []string{"https://x"}, nil)

	out := Normalize([]llm.Message{tool}, config.ModeMultimodal, "")
	assert.Equal(t, tool, out[0])
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	in := []llm.Message{{Role: llm.RoleUser, Content: llm.RichContent("x", []string{"https://a"}, nil)}}
	_ = Normalize(in, config.ModeMultimodal, "")
	assert.False(t, in[0].Content.IsParts())
}

func TestNormalize_NullAndTextUnchanged(t *testing.T) {
	in := []llm.Message{
		{Role: llm.RoleAssistant, Content: llm.NullContent(), ToolCalls: []llm.ToolCall{llm.NewToolCall("1", "f", "{}")}},
		llm.UserMessage("plain"),
	}
	for _, mode := range []config.ContentMode{config.ModeMultimodal, config.ModeTextOnly} {
		out := Normalize(in, mode, "")
		assert.True(t, out[0].Content.IsNull())
		assert.Equal(t, "plain", out[1].Content.Text)
	}
}

// Normalizing twice yields the same structure as normalizing once, in both modes.
func TestProperty_NormalizeIdempotent(t *testing.T) {
	urlGen := rapid.SampledFrom([]string{"https://a/1.png", "https://b/2.jpg", bareB64, "data:image/webp;base64,UklG"})
	rapid.Check(t, func(rt *rapid.T) {
		text := rapid.StringMatching(`[a-z ]{0,12}`).Draw(rt, "text")
		images := rapid.SliceOfN(urlGen, 0, 3).Draw(rt, "images")
		replies := rapid.SliceOfN(urlGen, 0, 2).Draw(rt, "replies")
		mode := rapid.SampledFrom([]config.ContentMode{config.ModeMultimodal, config.ModeTextOnly}).Draw(rt, "mode")

		in := []llm.Message{{Role: llm.RoleUser, Content: llm.RichContent(text, images, replies)}}
		once := Normalize(in, mode, "")
		twice := Normalize(once, mode, "")
		if !assert.ObjectsAreEqual(once, twice) {
			rt.Fatalf("not idempotent:\nonce=%+v\ntwice=%+v", once, twice)
		}
	})
}

func TestIsBareBase64(t *testing.T) {
	assert.True(t, IsBareBase64(bareB64))
	assert.False(t, IsBareBase64("short"))
	assert.False(t, IsBareBase64("https://"+bareB64))
	assert.False(t, IsBareBase64(strings.Repeat("hello world ", 8)))
}

func TestParseDataURI(t *testing.T) {
	img, ok := ParseDataURI("data:image/jpeg;base64,AAAA")
	require.True(t, ok)
	assert.Equal(t, InlineImage{MIMEType: "image/jpeg", Data: "AAAA"}, img)
	assert.Equal(t, "data:image/jpeg;base64,AAAA", img.DataURI())

	_, ok = ParseDataURI("data:text/plain,hello")
	assert.False(t, ok)
	_, ok = ParseDataURI("https://x")
	assert.False(t, ok)
}

func TestImageResolver_FetchesOnceAndCaches(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png; charset=binary")
		_, _ = w.Write([]byte("\x89PNG\r\n\x1a\nfake"))
	}))
	defer srv.Close()

	r := NewImageResolver(srv.Client(), nil, "", nil)
	ctx := context.Background()

	img, err := r.Resolve(ctx, srv.URL+"/a.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MIMEType)
	assert.NotEmpty(t, img.Data)

	again, err := r.Resolve(ctx, srv.URL+"/a.png")
	require.NoError(t, err)
	assert.Equal(t, img, again)
	assert.Equal(t, int32(1), hits.Load())
}

func TestImageResolver_InlineNeedsNoNetwork(t *testing.T) {
	r := NewImageResolver(nil, nil, "image/webp", nil)
	img, err := r.Resolve(context.Background(), bareB64)
	require.NoError(t, err)
	assert.Equal(t, "image/webp", img.MIMEType)
	assert.Equal(t, bareB64, img.Data)
}

func TestImageResolver_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	r := NewImageResolver(srv.Client(), nil, "", nil)
	_, err := r.Resolve(context.Background(), srv.URL+"/missing.png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	_, err = r.Resolve(context.Background(), "ftp://x")
	require.Error(t, err)
}
