package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

// CompressionConfig holds configuration for response compression
type CompressionConfig struct {
	MinSize          int      // Minimum response size to compress (bytes)
	CompressionLevel int      // Gzip compression level (1-9, 9 is best compression)
	ContentTypes     []string // Content types to compress
}

// DefaultCompressionConfig returns the default compression configuration
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize:          1024, // Compress responses >= 1KB
		CompressionLevel: 6,    // Balanced compression level
		ContentTypes: []string{
			"application/json",
			"text/plain",
		},
	}
}

// CompressionMiddleware gzips large estimation responses. Boxplot responses
// carry every removed sample, so they grow with the population.
type CompressionMiddleware struct {
	config CompressionConfig
	stats  *CompressionStats
	pool   sync.Pool // Pool of gzip writers
}

// NewCompressionMiddleware creates a new compression middleware
func NewCompressionMiddleware(config CompressionConfig) *CompressionMiddleware {
	level := config.CompressionLevel
	if level < gzip.BestSpeed || level > gzip.BestCompression {
		slog.Warn("Invalid gzip level, using default", "level", level)
		level = gzip.DefaultCompression
	}

	return &CompressionMiddleware{
		config: config,
		stats:  NewCompressionStats(),
		pool: sync.Pool{
			New: func() interface{} {
				gz, _ := gzip.NewWriterLevel(io.Discard, level)
				return gz
			},
		},
	}
}

// Handler returns the Gin middleware. The response is buffered so the size
// threshold can be checked before any header goes out.
func (cm *CompressionMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cm.clientAcceptsGzip(c.Request) {
			c.Next()
			return
		}

		original := c.Writer
		original.Header().Add("Vary", "Accept-Encoding")
		bw := &bufferedWriter{ResponseWriter: original}
		c.Writer = bw

		defer func() {
			c.Writer = original
			cm.flush(original, bw)
		}()

		c.Next()
	}
}

func (cm *CompressionMiddleware) flush(w gin.ResponseWriter, bw *bufferedWriter) {
	status := bw.Status()
	body := bw.buf.Bytes()

	if len(body) == 0 {
		if bw.status != 0 {
			w.WriteHeader(status)
		}
		return
	}

	if len(body) < cm.config.MinSize || !cm.shouldCompress(w.Header().Get("Content-Type")) {
		w.WriteHeader(status)
		if _, err := w.Write(body); err != nil {
			slog.Debug("Failed to write response", "error", err)
		}
		cm.stats.RecordRequest(int64(len(body)), int64(len(body)), false)
		return
	}

	w.Header().Set("Content-Encoding", "gzip")
	w.Header().Del("Content-Length")
	w.WriteHeader(status)

	counter := &countingWriter{w: w}
	gz := cm.getGzipWriter(counter)
	_, err := gz.Write(body)
	cm.returnGzipWriter(gz)
	if err != nil {
		slog.Debug("Failed to write compressed response", "error", err)
	}

	cm.stats.RecordRequest(int64(len(body)), counter.n, true)
}

// clientAcceptsGzip checks if the client accepts gzip compression
func (cm *CompressionMiddleware) clientAcceptsGzip(r *http.Request) bool {
	acceptEncoding := r.Header.Get("Accept-Encoding")
	return strings.Contains(acceptEncoding, "gzip")
}

// shouldCompress checks if the content type should be compressed
func (cm *CompressionMiddleware) shouldCompress(contentType string) bool {
	for _, ct := range cm.config.ContentTypes {
		if strings.Contains(contentType, ct) {
			return true
		}
	}
	return false
}

// getGzipWriter gets a gzip writer from the pool
func (cm *CompressionMiddleware) getGzipWriter(w io.Writer) *gzip.Writer {
	gz := cm.pool.Get().(*gzip.Writer)
	gz.Reset(w)
	return gz
}

// returnGzipWriter closes the stream and returns the writer to the pool
func (cm *CompressionMiddleware) returnGzipWriter(gz *gzip.Writer) {
	if err := gz.Close(); err != nil {
		slog.Debug("Failed to close gzip writer", "error", err)
	}
	cm.pool.Put(gz)
}

// bufferedWriter holds the status and body until the handler chain returns
type bufferedWriter struct {
	gin.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (bw *bufferedWriter) WriteHeader(code int) {
	if code > 0 {
		bw.status = code
	}
}

func (bw *bufferedWriter) WriteHeaderNow() {}

func (bw *bufferedWriter) Write(data []byte) (int, error) {
	return bw.buf.Write(data)
}

func (bw *bufferedWriter) WriteString(s string) (int, error) {
	return bw.buf.WriteString(s)
}

func (bw *bufferedWriter) Status() int {
	if bw.status == 0 {
		return http.StatusOK
	}
	return bw.status
}

func (bw *bufferedWriter) Size() int { return bw.buf.Len() }

func (bw *bufferedWriter) Written() bool { return bw.status != 0 || bw.buf.Len() > 0 }

// Flush is a no-op; the body is written once the chain returns
func (bw *bufferedWriter) Flush() {}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// CompressionStats tracks compression statistics
type CompressionStats struct {
	TotalRequests      int64
	CompressedRequests int64
	TotalBytes         int64
	CompressedBytes    int64
	mutex              sync.RWMutex
}

// NewCompressionStats creates new compression statistics
func NewCompressionStats() *CompressionStats {
	return &CompressionStats{}
}

// RecordRequest records a request's compression stats
func (cs *CompressionStats) RecordRequest(originalSize, compressedSize int64, compressed bool) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	cs.TotalRequests++
	cs.TotalBytes += originalSize

	if compressed {
		cs.CompressedRequests++
		cs.CompressedBytes += compressedSize
	} else {
		cs.CompressedBytes += originalSize
	}
}

// GetStats returns current compression statistics
func (cs *CompressionStats) GetStats() map[string]interface{} {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	compressionRatio := float64(0)
	if cs.TotalBytes > 0 {
		compressionRatio = float64(cs.CompressedBytes) / float64(cs.TotalBytes)
	}

	return map[string]interface{}{
		"total_requests":      cs.TotalRequests,
		"compressed_requests": cs.CompressedRequests,
		"total_bytes":         cs.TotalBytes,
		"compressed_bytes":    cs.CompressedBytes,
		"compression_ratio":   compressionRatio,
	}
}

// GetStats returns compression statistics
func (cm *CompressionMiddleware) GetStats() map[string]interface{} {
	return cm.stats.GetStats()
}
