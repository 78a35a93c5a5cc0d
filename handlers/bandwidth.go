package handlers

import (
	"context"
	"io"
	"log"
	"net"
	"net/http"
	"sync"

	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"
)

// burstSize is the largest write passed through a limiter in one step.
const burstSize = 32 * 1024

// BandwidthManager caps the total throughput of downloads and splits it
// evenly between client IPs, however many parallel requests each IP has
// open. Shares are recomputed whenever an IP starts or finishes its last
// download.
type BandwidthManager struct {
	mu    sync.Mutex
	limit float64 // bytes per second, 0 = unlimited
	peers map[string]*peer
}

type peer struct {
	limiter *rate.Limiter
	streams int
}

// NewBandwidthManager returns a manager sharing bytesPerSec between
// clients. 0 disables limiting.
func NewBandwidthManager(bytesPerSec float64) *BandwidthManager {
	return &BandwidthManager{limit: bytesPerSec, peers: make(map[string]*peer)}
}

// Middleware throttles the responses of next.
func (bm *BandwidthManager) Middleware(next http.Handler) http.Handler {
	if bm.limit == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		lim := bm.acquire(ip, r.URL.Path)
		defer bm.release(ip, r.URL.Path)
		next.ServeHTTP(&throttledWriter{ResponseWriter: w, ctx: r.Context(), lim: lim}, r)
	})
}

func (bm *BandwidthManager) acquire(ip, path string) *rate.Limiter {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	p, ok := bm.peers[ip]
	if !ok {
		p = &peer{limiter: rate.NewLimiter(rate.Limit(bm.limit), burstSize)}
		bm.peers[ip] = p
	}
	p.streams++
	log.Printf("export start    ip=%-15s  streams=%-2d  path=%s", ip, p.streams, path)
	bm.rebalanceLocked()
	return p.limiter
}

func (bm *BandwidthManager) release(ip, path string) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	p, ok := bm.peers[ip]
	if !ok {
		return
	}
	p.streams--
	log.Printf("export end      ip=%-15s  streams=%-2d  path=%s", ip, p.streams, path)
	if p.streams <= 0 {
		delete(bm.peers, ip)
	}
	bm.rebalanceLocked()
}

// rebalanceLocked gives every active IP an equal share. bm.mu must be held.
func (bm *BandwidthManager) rebalanceLocked() {
	if len(bm.peers) == 0 {
		return
	}
	share := bm.limit / float64(len(bm.peers))
	for _, p := range bm.peers {
		p.limiter.SetLimit(rate.Limit(share))
	}
	log.Printf("export rate     peers=%-2d  share=%s", len(bm.peers), HumanRate(share))
}

// HumanRate formats a bytes-per-second value in bits per second, the unit
// the limit is configured in.
func HumanRate(bytesPerSec float64) string {
	return humanize.SIWithDigits(bytesPerSec*8, 2, "bps")
}

// throttledWriter passes every Write through a token bucket.
type throttledWriter struct {
	http.ResponseWriter
	ctx context.Context
	lim *rate.Limiter
}

func (tw *throttledWriter) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		n := min(len(p), burstSize)
		if err := tw.lim.WaitN(tw.ctx, n); err != nil {
			return written, err
		}
		m, err := tw.ResponseWriter.Write(p[:n])
		written += m
		if err != nil {
			return written, err
		}
		p = p[n:]
	}
	return written, nil
}

// ReadFrom keeps io.Copy from bypassing Write through the underlying
// writer's own ReadFrom.
func (tw *throttledWriter) ReadFrom(src io.Reader) (int64, error) {
	return io.CopyBuffer(struct{ io.Writer }{tw}, src, make([]byte, burstSize))
}

// Unwrap lets http.ResponseController reach the underlying ResponseWriter.
func (tw *throttledWriter) Unwrap() http.ResponseWriter { return tw.ResponseWriter }

// clientIP extracts the remote IP from the request, stripping the port.
// chi's RealIP middleware has already replaced RemoteAddr when the request
// came through a proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
