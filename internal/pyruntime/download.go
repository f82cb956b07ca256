package pyruntime

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"

	"github.com/pyappify/pyappify/internal/events"
)

const mirrorHost = "https://www.modelscope.cn"

func isMirror(source string) bool {
	return strings.HasPrefix(source, mirrorHost)
}

// mirrorUserAgent builds the client identifier the mirror expects, with a
// random session id.
func mirrorUserAgent() string {
	const alphanum = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	session := make([]byte, 32)
	for i := range session {
		session[i] = alphanum[rand.Intn(len(alphanum))]
	}
	return fmt.Sprintf("modelscope/%s; python/%s; session_id/%s; platform/%s; processor/%s; env/%s; user/%s",
		"1.26.0", "3.12.3", string(session),
		"Windows-11-10.0.26100-SP0 AMD64 Family 25 Model 97 Stepping 2, AuthenticAMD",
		"AuthenticAMD", "custom", "unknown")
}

// writeStream copies a response body to dest, counting bytes through the
// progress reporter.
func writeStream(dest string, body io.Reader, progress *events.Progress) error {
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	if _, err := io.Copy(io.MultiWriter(f, progress), body); err != nil {
		f.Close()
		return err
	}
	progress.Done()
	return f.Close()
}
