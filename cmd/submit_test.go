package cmd

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/techscore/internal/score"
	"github.com/joescharf/techscore/internal/submit"
)

// fakePlatform is a stand-in for the quality platform's submit API.
type fakePlatform struct {
	*httptest.Server
	hits atomic.Int32

	mu       sync.Mutex
	lastPath string
	lastBody []byte
}

func (fp *fakePlatform) path() string {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return fp.lastPath
}

func (fp *fakePlatform) body() []byte {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return fp.lastBody
}

func newFakePlatform(t *testing.T, status int, body string) *fakePlatform {
	t.Helper()
	fp := &fakePlatform{}
	fp.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		fp.mu.Lock()
		fp.lastPath = r.URL.Path
		fp.lastBody = b
		fp.mu.Unlock()
		fp.hits.Add(1)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(fp.Close)
	return fp
}

var fullFlags = []string{
	"--tech-doc-name", "X",
	"--tech-doc-link", "L",
	"--submitter", "S",
	"--business-line", "B",
	"--product-score", "85.5",
	"--backend-score", "90",
	"--frontend-score", "88",
	"--test-score", "92.5",
	"--global-score", "89",
	"--global-level", "Good",
}

// flagsWithout returns fullFlags minus the named flags and their values.
func flagsWithout(flags ...string) []string {
	skip := make(map[string]bool, len(flags))
	for _, f := range flags {
		skip["--"+f] = true
	}
	var out []string
	for i := 0; i < len(fullFlags); i += 2 {
		if skip[fullFlags[i]] {
			continue
		}
		out = append(out, fullFlags[i], fullFlags[i+1])
	}
	return out
}

func writeJSONFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const fileJSON = `{"techDocName":"A","techDocLink":"https://wiki.example.com/p?id=1&v=2","submitter":"S","businessLine":"B","productScore":85.5,"backendScore":90.0,"frontendScore":88,"testScore":92.5,"globalScore":89.0,"globalLevel":"优秀"}`

func TestSubmit_FlagsSuccess(t *testing.T) {
	testEnv(t)
	fp := newFakePlatform(t, http.StatusOK, `{"code":0,"message":"ok"}`)

	err := runCLI(t, append([]string{"--url", fp.URL + "/"}, fullFlags...)...)
	require.NoError(t, err)

	assert.Equal(t, int32(1), fp.hits.Load())
	assert.Equal(t, score.APIPath, fp.path())

	var sent map[string]any
	require.NoError(t, json.Unmarshal(fp.body(), &sent))
	assert.Equal(t, map[string]any{
		"techDocName":   "X",
		"techDocLink":   "L",
		"submitter":     "S",
		"businessLine":  "B",
		"productScore":  85.5,
		"backendScore":  90.0,
		"frontendScore": 88.0,
		"testScore":     92.5,
		"globalScore":   89.0,
		"globalLevel":   "Good",
	}, sent)

	out := stdout()
	assert.Contains(t, out, fp.URL+score.APIPath)
	assert.Contains(t, out, "Response status code: 200")
	assert.Contains(t, out, `"message": "ok"`)
	assert.Contains(t, out, "Request succeeded")
}

func TestSubmit_FromFileUnmodified(t *testing.T) {
	testEnv(t)
	fp := newFakePlatform(t, http.StatusOK, `{}`)
	path := writeJSONFile(t, fileJSON)

	err := runCLI(t, "--url", fp.URL, "--from-file", path)
	require.NoError(t, err)

	assert.JSONEq(t, fileJSON, string(fp.body()))
	assert.Contains(t, string(fp.body()), `"backendScore":90.0`)
	assert.Contains(t, string(fp.body()), "id=1&v=2")
	assert.Contains(t, stdout(), "优秀")
}

func TestSubmit_FromFileIgnoresFieldFlags(t *testing.T) {
	testEnv(t)
	fp := newFakePlatform(t, http.StatusOK, `{}`)
	path := writeJSONFile(t, fileJSON)

	err := runCLI(t, "--url", fp.URL, "--from-file", path, "--submitter", "Other")
	require.NoError(t, err)

	assert.Contains(t, stderr(), "ignoring --submitter")
	var sent map[string]any
	require.NoError(t, json.Unmarshal(fp.body(), &sent))
	assert.Equal(t, "S", sent["submitter"])
}

func TestSubmit_FromFileNotFound(t *testing.T) {
	testEnv(t)
	fp := newFakePlatform(t, http.StatusOK, `{}`)

	err := runCLI(t, "--url", fp.URL, "--from-file", filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, score.ErrFileNotFound)
	assert.Contains(t, err.Error(), "nope.json")
	assert.Equal(t, int32(0), fp.hits.Load())
}

func TestSubmit_FromFileInvalidJSON(t *testing.T) {
	testEnv(t)
	fp := newFakePlatform(t, http.StatusOK, `{}`)

	err := runCLI(t, "--url", fp.URL, "--from-file", writeJSONFile(t, `{"techDocName":`))
	require.Error(t, err)
	assert.ErrorIs(t, err, score.ErrInvalidJSON)
	assert.Equal(t, int32(0), fp.hits.Load())
}

func TestSubmit_FromFileInvalidUTF8(t *testing.T) {
	testEnv(t)
	fp := newFakePlatform(t, http.StatusOK, `{}`)

	content := strings.Replace(fileJSON, `"submitter":"S"`, "\"submitter\":\"S\xff\"", 1)
	require.NotEqual(t, fileJSON, content)

	err := runCLI(t, "--url", fp.URL, "--from-file", writeJSONFile(t, content))
	require.Error(t, err)
	assert.ErrorIs(t, err, score.ErrInvalidJSON)
	assert.Equal(t, int32(0), fp.hits.Load())
}

func TestSubmit_EachMissingFlagReportedOnce(t *testing.T) {
	for _, f := range score.Fields {
		t.Run(f.Key, func(t *testing.T) {
			testEnv(t)
			fp := newFakePlatform(t, http.StatusOK, `{}`)

			err := runCLI(t, append([]string{"--url", fp.URL}, flagsWithout(f.Flag)...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "1 of 10")
			assert.Equal(t, int32(0), fp.hits.Load())

			all := stdout() + stderr()
			assert.Equal(t, 1, strings.Count(all, f.Key), all)
			assert.Contains(t, stderr(), "  - "+f.Key)
		})
	}
}

func TestSubmit_EachMissingFileFieldReportedOnce(t *testing.T) {
	for _, f := range score.Fields {
		t.Run(f.Key, func(t *testing.T) {
			testEnv(t)
			fp := newFakePlatform(t, http.StatusOK, `{}`)

			var obj map[string]any
			require.NoError(t, json.Unmarshal([]byte(fileJSON), &obj))
			delete(obj, f.Key)
			raw, err := json.Marshal(obj)
			require.NoError(t, err)

			err = runCLI(t, "--url", fp.URL, "--from-file", writeJSONFile(t, string(raw)))
			require.Error(t, err)
			assert.Equal(t, int32(0), fp.hits.Load())
			assert.Equal(t, 1, strings.Count(stdout()+stderr(), f.Key))
		})
	}
}

func TestSubmit_AllMissingListed(t *testing.T) {
	testEnv(t)
	fp := newFakePlatform(t, http.StatusOK, `{}`)

	err := runCLI(t, "--url", fp.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "10 of 10")
	for _, k := range score.RequiredKeys() {
		assert.Equal(t, 1, strings.Count(stderr(), k), k)
	}
}

func TestSubmit_MissingURL(t *testing.T) {
	testEnv(t)

	err := runCLI(t, fullFlags...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"url"`)
}

func TestSubmit_URLFromConfig(t *testing.T) {
	testEnv(t)
	fp := newFakePlatform(t, http.StatusOK, `{}`)
	viper.Set("url", fp.URL)

	require.NoError(t, runCLI(t, fullFlags...))
	assert.Equal(t, int32(1), fp.hits.Load())
}

func TestSubmit_ConfiguredDefaults(t *testing.T) {
	testEnv(t)
	fp := newFakePlatform(t, http.StatusOK, `{}`)
	viper.Set("submitter", "Configured")
	viper.Set("business_line", "Payments")

	args := append([]string{"--url", fp.URL}, flagsWithout("submitter", "business-line")...)
	require.NoError(t, runCLI(t, args...))

	var sent map[string]any
	require.NoError(t, json.Unmarshal(fp.body(), &sent))
	assert.Equal(t, "Configured", sent["submitter"])
	assert.Equal(t, "Payments", sent["businessLine"])
}

func TestSubmit_FlagBeatsConfiguredDefault(t *testing.T) {
	testEnv(t)
	fp := newFakePlatform(t, http.StatusOK, `{}`)
	viper.Set("submitter", "Configured")

	require.NoError(t, runCLI(t, append([]string{"--url", fp.URL}, fullFlags...)...))

	var sent map[string]any
	require.NoError(t, json.Unmarshal(fp.body(), &sent))
	assert.Equal(t, "S", sent["submitter"])
}

func TestSubmit_RemoteRejection(t *testing.T) {
	testEnv(t)
	fp := newFakePlatform(t, http.StatusInternalServerError, `{"error":"bad"}`)

	err := runCLI(t, append([]string{"--url", fp.URL}, fullFlags...)...)
	require.NoError(t, err, "a rejected submission does not fail the run")

	assert.Contains(t, stdout(), "Response status code: 500")
	assert.Contains(t, stdout(), `"error": "bad"`)
	assert.Contains(t, stderr(), "Request failed, status code: 500")
}

func TestSubmit_ConnectionRefused(t *testing.T) {
	testEnv(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := runCLI(t, append([]string{"--url", url}, fullFlags...)...)
	require.Error(t, err)
	assert.ErrorIs(t, err, submit.ErrConnection)
	assert.Contains(t, stderr(), "Cannot connect to server")
	assert.Contains(t, stderr(), "the server is running")
}

func TestSubmit_Timeout(t *testing.T) {
	testEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	err := runCLI(t, append([]string{"--url", srv.URL, "--timeout", "50ms"}, fullFlags...)...)
	require.Error(t, err)
	assert.ErrorIs(t, err, submit.ErrTimeout)
	assert.Contains(t, stderr(), "Request timed out")
}

func TestSubmit_NonJSONResponse(t *testing.T) {
	testEnv(t)
	fp := newFakePlatform(t, http.StatusBadGateway, `<html>Bad Gateway</html>`)

	err := runCLI(t, append([]string{"--url", fp.URL}, fullFlags...)...)
	require.Error(t, err)
	assert.ErrorIs(t, err, submit.ErrInvalidResponse)
	assert.Contains(t, stderr(), "<html>Bad Gateway</html>")
}

func TestSubmit_DryRun(t *testing.T) {
	testEnv(t)
	fp := newFakePlatform(t, http.StatusOK, `{}`)

	err := runCLI(t, append([]string{"--url", fp.URL, "--dry-run"}, fullFlags...)...)
	require.NoError(t, err)

	assert.Equal(t, int32(0), fp.hits.Load())
	assert.Contains(t, stdout(), `"techDocName": "X"`)
	assert.Contains(t, stderr(), "[DRY-RUN]")
}

func TestSubmit_Verbose(t *testing.T) {
	testEnv(t)
	fp := newFakePlatform(t, http.StatusOK, `{}`)

	err := runCLI(t, append([]string{"--url", fp.URL, "-v"}, fullFlags...)...)
	require.NoError(t, err)

	out := stdout()
	assert.Contains(t, out, "Timeout: 30s")
	assert.Contains(t, out, "Request ID:")
	assert.Contains(t, out, "92.5")
}
