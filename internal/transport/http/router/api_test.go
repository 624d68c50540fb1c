package router

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"

	"cipherpanel/internal/core/auth"
	"cipherpanel/internal/core/config"
	"cipherpanel/internal/feature/layout"
	"cipherpanel/internal/feature/user"
	"cipherpanel/internal/oracle"
	"cipherpanel/internal/transport/http/handler"
)

// wireEval runs the evaluator contract on plaintext uint64 blobs so the HTTP
// round trip stays exact without a CKKS context.
type wireEval struct{}

func (wireEval) enc(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func (wireEval) dec(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("not a ciphertext: %d bytes", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

func (e wireEval) EncryptUint(v uint64) ([]byte, error) { return e.enc(v), nil }

func (e wireEval) Add(a, b []byte) ([]byte, error) {
	x, err := e.dec(a)
	if err != nil {
		return nil, err
	}
	y, err := e.dec(b)
	if err != nil {
		return nil, err
	}
	return e.enc(x + y), nil
}

func (e wireEval) MulIndex(a []byte, k int) ([]byte, error) {
	x, err := e.dec(a)
	if err != nil {
		return nil, err
	}
	return e.enc(x * uint64(k)), nil
}

func (e wireEval) Div(num, den []byte) ([]byte, error) {
	x, err := e.dec(num)
	if err != nil {
		return nil, err
	}
	y, err := e.dec(den)
	if err != nil {
		return nil, err
	}
	if y == 0 {
		return nil, errors.New("division by zero")
	}
	return e.enc(x / y), nil
}

func (e wireEval) Validate(b []byte) error {
	_, err := e.dec(b)
	return err
}

type wireDecryptor struct{}

func (wireDecryptor) DecryptUint(ct []byte) (uint64, error) { return wireEval{}.dec(ct) }

const testCallbackToken = "test-callback-token"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: glogger.Default.LogMode(glogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	models := append(layout.Models(), &user.UserModel{})
	require.NoError(t, db.AutoMigrate(models...))

	log := zap.NewNop()
	prover := oracle.NewProver("test-oracle-secret")
	worker := oracle.NewWorker(wireDecryptor{}, prover, 8, log)

	svc := layout.NewService(layout.Options{
		DB:       db,
		Eval:     wireEval{},
		Oracle:   worker,
		Verifier: prover,
		Log:      log,
	})
	worker.Bind(svc)
	require.NoError(t, svc.InitWeights(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go worker.Run(ctx)

	jwter := &auth.JWTer{Secret: []byte("test-jwt-secret"), Issuer: "test", TTL: time.Hour}
	cfg := &config.Config{
		App:    config.App{Env: "test"},
		Oracle: config.Oracle{CallbackToken: testCallbackToken},
	}
	ah := &handler.AuthHandler{DB: db, JWT: jwter, Log: log}
	lh := &handler.LayoutHandler{Svc: svc, Log: log}

	ts := httptest.NewServer(NewAPIEngine(log, cfg, jwter, ah, lh))
	t.Cleanup(ts.Close)
	return ts
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, method, url, token string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(res.Body).Decode(&env))
	return res.StatusCode, env
}

func login(t *testing.T, ts *httptest.Server, email string) string {
	t.Helper()
	status, env := doJSON(t, http.MethodPost, ts.URL+"/api/v1/auth/login", "", gin.H{
		"email": email, "password": "hunter2",
	})
	require.Equal(t, http.StatusOK, status)
	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	require.NotEmpty(t, out.Token)
	return out.Token
}

func b64(v uint64) string {
	return base64.StdEncoding.EncodeToString(wireEval{}.enc(v))
}

func TestLayoutRoutesRequireAuth(t *testing.T) {
	ts := newTestServer(t)
	status, _ := doJSON(t, http.MethodPost, ts.URL+"/api/v1/layout/compute", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestCallbackRequiresOracleToken(t *testing.T) {
	ts := newTestServer(t)
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/oracle/callback",
		strings.NewReader(`{"handle":"x","plaintext":"AA==","proof":"AA=="}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusForbidden, res.StatusCode)
}

func TestLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	token := login(t, ts, "e2e@example.com")

	// nothing computed yet
	status, _ := doJSON(t, http.MethodGet, ts.URL+"/api/v1/layout/encrypted", token, nil)
	require.Equal(t, http.StatusConflict, status)

	// upload encrypted profile: activity=5, preference=7
	status, _ = doJSON(t, http.MethodPut, ts.URL+"/api/v1/profile", token, gin.H{
		"activity": b64(5), "preference": b64(7),
	})
	require.Equal(t, http.StatusOK, status)

	// compute: descriptor = 5 + 7
	status, env := doJSON(t, http.MethodPost, ts.URL+"/api/v1/layout/compute", token, nil)
	require.Equal(t, http.StatusOK, status)
	var comp struct {
		Descriptor string `json:"descriptor"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &comp))
	raw, err := base64.StdEncoding.DecodeString(comp.Descriptor)
	require.NoError(t, err)
	v, err := wireEval{}.dec(raw)
	require.NoError(t, err)
	require.Equal(t, uint64(12), v)

	// recompute is refused
	status, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/layout/compute", token, nil)
	require.Equal(t, http.StatusConflict, status)

	// request decryption; the embedded worker delivers the callback
	status, env = doJSON(t, http.MethodPost, ts.URL+"/api/v1/layout/decrypt", token, nil)
	require.Equal(t, http.StatusOK, status)
	var dec struct {
		Handle string `json:"handle"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &dec))
	require.NotEmpty(t, dec.Handle)

	var rendered string
	require.Eventually(t, func() bool {
		st, env := doJSON(t, http.MethodGet, ts.URL+"/api/v1/layout/decrypted", token, nil)
		if st != http.StatusOK {
			return false
		}
		var out struct {
			Rendered string `json:"rendered"`
		}
		if err := json.Unmarshal(env.Data, &out); err != nil {
			return false
		}
		rendered = out.Rendered
		return true
	}, 3*time.Second, 20*time.Millisecond)

	require.Contains(t, rendered, "clock: Priority 4")
	require.Contains(t, rendered, "notifications: Priority 1")
}

func TestMalformedProfileRejected(t *testing.T) {
	ts := newTestServer(t)
	token := login(t, ts, "bad@example.com")

	status, _ := doJSON(t, http.MethodPut, ts.URL+"/api/v1/profile", token, gin.H{
		"activity": "!!!not-base64!!!", "preference": b64(7),
	})
	require.Equal(t, http.StatusBadRequest, status)

	// valid base64 but not a ciphertext
	status, _ = doJSON(t, http.MethodPut, ts.URL+"/api/v1/profile", token, gin.H{
		"activity": base64.StdEncoding.EncodeToString([]byte("xx")), "preference": b64(7),
	})
	require.Equal(t, http.StatusBadRequest, status)
}

func TestLoginAutoRegistersOnce(t *testing.T) {
	ts := newTestServer(t)

	status, env := doJSON(t, http.MethodPost, ts.URL+"/api/v1/auth/login", "", gin.H{
		"email": "new@example.com", "password": "hunter2",
	})
	require.Equal(t, http.StatusOK, status)
	var first struct {
		IsNew bool `json:"isNew"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &first))
	require.True(t, first.IsNew)

	status, env = doJSON(t, http.MethodPost, ts.URL+"/api/v1/auth/login", "", gin.H{
		"email": "new@example.com", "password": "hunter2",
	})
	require.Equal(t, http.StatusOK, status)
	var second struct {
		IsNew bool `json:"isNew"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &second))
	require.False(t, second.IsNew)

	status, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/auth/login", "", gin.H{
		"email": "new@example.com", "password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, status)
}
