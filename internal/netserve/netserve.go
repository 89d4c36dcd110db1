// Package netserve implements --serve ADDR mode: an HTTP/3 endpoint
// that performs one complete render per request. Grounded on the
// teacher's internal/runtime/netstack.HTTP3Server, which wraps
// http3.Server lifecycle (bind, serve in a goroutine, propagate the
// first error on a channel, close on Stop); this package keeps that
// shape and adds the raytrace-specific POST /render handler and the
// self-signed certificate the server needs to terminate TLS 1.3.
package netserve

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"math/big"
	"net"
	"net/http"
	"time"

	quic "github.com/quic-go/quic-go"
	http3 "github.com/quic-go/quic-go/http3"

	"github.com/selenia-project/crt/internal/raytrace"
)

// RenderPPM renders scene text and encodes the result as an ASCII
// PPM (P3) image.
type RenderPPM func(scene string, opts raytrace.Options) ([]byte, error)

// Server is an HTTP/3 endpoint exposing POST /render.
type Server struct {
	pc    net.PacketConn
	srv   *http3.Server
	close func() error
	errC  chan error
	addr  string
}

// Options configures the render endpoint. Width/Height/MemBytes/Jobs
// are applied to every request; a scene is sent as the request body
// and a PPM image comes back as the response body.
type Options struct {
	Width, Height, MemBytes, Jobs int
	Render                        RenderPPM
}

// New builds a Server bound to addr, serving a self-signed TLS 1.3
// certificate for "localhost". The cert is generated fresh on every
// call; this server is meant for same-host or trusted-network use,
// not for a public endpoint behind a real CA.
func New(addr string, opts Options) (*Server, error) {
	cert, err := selfSignedCert()
	if err != nil {
		return nil, fmt.Errorf("generating self-signed certificate: %w", err)
	}

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS13,
		NextProtos:   []string{"h3"},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/render", renderHandler(opts))

	srv := &http3.Server{
		Addr:       addr,
		TLSConfig:  tlsCfg,
		Handler:    mux,
		QUICConfig: &quic.Config{},
	}

	return &Server{srv: srv, addr: addr, errC: make(chan error, 1)}, nil
}

// Start binds the server's UDP socket and begins serving in the
// background, returning the bound address (useful when addr ends in
// ":0").
func (s *Server) Start() (string, error) {
	pc, err := net.ListenPacket("udp", s.addr)
	if err != nil {
		return "", err
	}

	s.pc = pc
	realAddr := pc.LocalAddr().String()
	done := make(chan struct{})

	go func() {
		if err := s.srv.Serve(s.pc); err != nil {
			select {
			case s.errC <- err:
			default:
			}
		}

		close(done)
	}()

	s.close = func() error {
		_ = s.pc.Close()
		select {
		case <-done:
		case <-time.After(time.Second):
		}

		return nil
	}

	return realAddr, nil
}

// Stop closes the server's socket and waits for Serve to return.
func (s *Server) Stop() error {
	if s.close != nil {
		return s.close()
	}

	return nil
}

// Error returns a non-blocking channel that receives the first serve
// error, if any.
func (s *Server) Error() <-chan error {
	return s.errC
}

// renderHandler performs exactly one raytrace.Render per request: the
// request body is the scene description, the response body is the
// PPM image opts.Render produces. Each request gets its own region, so concurrent
// requests never share render state.
func renderHandler(opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "only POST is supported", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, fmt.Sprintf("reading request body: %v", err), http.StatusBadRequest)
			return
		}

		img, err := opts.Render(string(body), raytrace.Options{
			MemBytes: opts.MemBytes,
			Width:    opts.Width,
			Height:   opts.Height,
			Workers:  opts.Jobs,
		})
		if err != nil {
			http.Error(w, fmt.Sprintf("rendering: %v", err), http.StatusUnprocessableEntity)
			return
		}

		w.Header().Set("Content-Type", "image/x-portable-pixmap")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(img)
	}
}

func selfSignedCert() (tls.Certificate, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return tls.Certificate{}, err
	}

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		DNSNames:     []string{"localhost"},
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	if err != nil {
		return tls.Certificate{}, err
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	return tls.X509KeyPair(certPEM, keyPEM)
}
