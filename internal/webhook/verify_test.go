package webhook

import (
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/scrapehook/internal/signature"
)

const (
	seedSecret    = "topsecret"
	seedBody      = `{"a":1}`
	seedTimestamp = "1700000000000"
)

func fixedClockAt(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func seedVerifier() *Verifier {
	return NewVerifier(fixedClockAt(1700000000000))
}

func TestVerifySeedScenario(t *testing.T) {
	v := seedVerifier()
	valid := signature.Sign([]byte(seedBody), seedSecret, seedTimestamp)

	tests := []struct {
		name      string
		signature string
		timestamp string
		want      bool
	}{
		{name: "correct signature", signature: valid, timestamp: seedTimestamp, want: true},
		{name: "other 64-hex signature", signature: strings.Repeat("ab", 32), timestamp: seedTimestamp, want: false},
		{name: "just over five minutes old", signature: signature.Sign([]byte(seedBody), seedSecret, "1699999699999"), timestamp: "1699999699999", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := v.Verify(VerifyOptions{
				Body:      []byte(seedBody),
				Signature: tt.signature,
				Timestamp: tt.timestamp,
				Secret:    seedSecret,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestVerifyFreshnessBoundary(t *testing.T) {
	now := int64(1700000000000)
	v := NewVerifier(fixedClockAt(now))

	tests := []struct {
		name   string
		offset int64
		want   bool
	}{
		{name: "exactly max age old", offset: -300000, want: true},
		{name: "one ms past max age", offset: -300001, want: false},
		{name: "exactly max age ahead", offset: 300000, want: true},
		{name: "one ms past max age ahead", offset: 300001, want: false},
		{name: "same instant", offset: 0, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := strconv.FormatInt(now+tt.offset, 10)
			ok, err := v.Verify(VerifyOptions{
				Body:      []byte(seedBody),
				Signature: signature.Sign([]byte(seedBody), seedSecret, ts),
				Timestamp: ts,
				Secret:    seedSecret,
				MaxAge:    300000 * time.Millisecond,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestVerifyCustomMaxAge(t *testing.T) {
	now := int64(1700000000000)
	v := NewVerifier(fixedClockAt(now))
	ts := strconv.FormatInt(now-10*60*1000, 10)
	opts := VerifyOptions{
		Body:      []byte(seedBody),
		Signature: signature.Sign([]byte(seedBody), seedSecret, ts),
		Timestamp: ts,
		Secret:    seedSecret,
	}

	ok, err := v.Verify(opts)
	require.NoError(t, err)
	assert.False(t, ok, "default max age should reject a ten minute old timestamp")

	opts.MaxAge = 500 * time.Minute
	ok, err = v.Verify(opts)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyMissingParameter(t *testing.T) {
	v := seedVerifier()
	valid := VerifyOptions{
		Body:      []byte(seedBody),
		Signature: signature.Sign([]byte(seedBody), seedSecret, seedTimestamp),
		Timestamp: seedTimestamp,
		Secret:    seedSecret,
	}

	tests := []struct {
		name   string
		mutate func(o *VerifyOptions)
		param  string
	}{
		{name: "empty body", mutate: func(o *VerifyOptions) { o.Body = nil }, param: "body"},
		{name: "empty signature", mutate: func(o *VerifyOptions) { o.Signature = "" }, param: "signature"},
		{name: "empty timestamp", mutate: func(o *VerifyOptions) { o.Timestamp = "" }, param: "timestamp"},
		{name: "empty secret", mutate: func(o *VerifyOptions) { o.Secret = "" }, param: "secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := valid
			tt.mutate(&opts)

			ok, err := v.Verify(opts)
			assert.False(t, ok)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMissingParameter))

			var mpe *MissingParameterError
			require.True(t, errors.As(err, &mpe))
			assert.Equal(t, tt.param, mpe.Name)
		})
	}
}

func TestVerifyRejectsWithoutError(t *testing.T) {
	v := seedVerifier()
	valid := signature.Sign([]byte(seedBody), seedSecret, seedTimestamp)

	tests := []struct {
		name string
		opts VerifyOptions
	}{
		{
			name: "non numeric timestamp",
			opts: VerifyOptions{Body: []byte(seedBody), Signature: valid, Timestamp: "yesterday", Secret: seedSecret},
		},
		{
			name: "fractional timestamp",
			opts: VerifyOptions{Body: []byte(seedBody), Signature: valid, Timestamp: "1700000000000.5", Secret: seedSecret},
		},
		{
			name: "tampered body",
			opts: VerifyOptions{Body: []byte(`{"a":2}`), Signature: valid, Timestamp: seedTimestamp, Secret: seedSecret},
		},
		{
			name: "reserialized body",
			opts: VerifyOptions{Body: []byte(`{ "a": 1 }`), Signature: valid, Timestamp: seedTimestamp, Secret: seedSecret},
		},
		{
			name: "wrong secret",
			opts: VerifyOptions{Body: []byte(seedBody), Signature: valid, Timestamp: seedTimestamp, Secret: "wrong"},
		},
		{
			name: "short signature",
			opts: VerifyOptions{Body: []byte(seedBody), Signature: valid[:10], Timestamp: seedTimestamp, Secret: seedSecret},
		},
		{
			name: "non hex signature",
			opts: VerifyOptions{Body: []byte(seedBody), Signature: "not-valid-hex", Timestamp: seedTimestamp, Secret: seedSecret},
		},
		{
			name: "far past timestamp",
			opts: VerifyOptions{Body: []byte(seedBody), Signature: valid, Timestamp: "-9223372036854775808", Secret: seedSecret},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := v.Verify(tt.opts)
			assert.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestVerifySingleCharacterTamper(t *testing.T) {
	v := seedVerifier()
	valid := signature.Sign([]byte(seedBody), seedSecret, seedTimestamp)

	for i := range valid {
		tampered := []byte(valid)
		if tampered[i] == '0' {
			tampered[i] = '1'
		} else {
			tampered[i] = '0'
		}
		ok, err := v.Verify(VerifyOptions{
			Body:      []byte(seedBody),
			Signature: string(tampered),
			Timestamp: seedTimestamp,
			Secret:    seedSecret,
		})
		require.NoError(t, err)
		assert.False(t, ok, "tamper at index %d should fail", i)
	}
}

func TestVerifyRoundTripConcurrent(t *testing.T) {
	now := time.Now()
	v := NewVerifier(func() time.Time { return now })

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			secret := "secret-" + strconv.Itoa(i)
			body := []byte(`{"n":` + strconv.Itoa(i) + `}`)
			ts := strconv.FormatInt(now.UnixMilli()-int64(i)*1000, 10)
			ok, err := v.Verify(VerifyOptions{
				Body:      body,
				Signature: signature.Sign(body, secret, ts),
				Timestamp: ts,
				Secret:    secret,
			})
			assert.NoError(t, err)
			assert.True(t, ok)
		}()
	}
	wg.Wait()
}

func TestVerifyWebhookUsesWallClock(t *testing.T) {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	ok, err := VerifyWebhook(VerifyOptions{
		Body:      []byte(seedBody),
		Signature: signature.Sign([]byte(seedBody), seedSecret, ts),
		Timestamp: ts,
		Secret:    seedSecret,
	})
	require.NoError(t, err)
	assert.True(t, ok)
}
