package protocol

import (
	"bytes"
	"io"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/dmitrijs2005/gophchat/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_Stream(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	frames := []Frame{
		PeerPort(40001),
		Prompt(FieldUsername, "Username: "),
		Text("line one\nline two"),
		Command("message bob hi"),
		Logout("alice", "bob", false, true),
		PrivateTarget("bob", "127.0.0.1", 51000, 40002, "alice", true),
		Ack(),
		PeerHello("alice", "bob"),
		PrivateReply("bob", true),
	}
	for _, f := range frames {
		require.NoError(t, enc.Encode(f))
	}

	assert.Equal(t, len(frames), strings.Count(buf.String(), "\n"), "embedded newlines must be escaped")

	dec := NewDecoder(&buf)
	for _, want := range frames {
		got, err := dec.Decode()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := dec.Decode()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecode_SplitAcrossWrites(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	b, err := Marshal(Text("hello"))
	require.NoError(t, err)

	go func() {
		for _, c := range b {
			_, _ = client.Write([]byte{c})
		}
	}()

	got, err := NewDecoder(server).Decode()
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Text)
}

func TestDecode_Errors(t *testing.T) {
	t.Run("garbage is an unexpected frame and the stream continues", func(t *testing.T) {
		dec := NewDecoder(strings.NewReader("not json\n{\"type\":\"ack\"}\n"))

		_, err := dec.Decode()
		require.ErrorIs(t, err, common.ErrUnexpectedFrame)
		assert.ErrorIs(t, err, common.ErrProtocol)

		f, err := dec.Decode()
		require.NoError(t, err)
		assert.Equal(t, TypeAck, f.Type)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := NewDecoder(strings.NewReader(`{"type":"shout"}` + "\n")).Decode()
		assert.ErrorIs(t, err, common.ErrUnexpectedFrame)
	})

	t.Run("blank lines are skipped", func(t *testing.T) {
		f, err := NewDecoder(strings.NewReader("\n\n{\"type\":\"text\",\"text\":\"x\"}\n")).Decode()
		require.NoError(t, err)
		assert.Equal(t, "x", f.Text)
	})

	t.Run("oversized line", func(t *testing.T) {
		line := `{"type":"text","text":"` + strings.Repeat("a", MaxFrameSize) + `"}` + "\n"
		_, err := NewDecoder(strings.NewReader(line)).Decode()
		assert.ErrorIs(t, err, common.ErrFrameTooLarge)
	})
}

func TestMarshal_TooLarge(t *testing.T) {
	_, err := Marshal(Text(strings.Repeat("a", MaxFrameSize)))
	assert.ErrorIs(t, err, common.ErrFrameTooLarge)
}

func TestEncoder_ConcurrentWritesDoNotInterleave(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = enc.Encode(Text(strings.Repeat("z", 512)))
		}()
	}
	wg.Wait()

	dec := NewDecoder(&buf)
	for i := 0; i < 20; i++ {
		f, err := dec.Decode()
		require.NoError(t, err)
		assert.Len(t, f.Text, 512)
	}
}
