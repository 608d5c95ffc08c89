package explanation

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Fingerprint hashes the fields that influence the explanation text.
// Keys are sorted, missing optionals encode as null and non-ASCII text is kept verbatim.
func Fingerprint(req *Request) string {
	userErrors := req.UserErrors
	if userErrors == nil {
		userErrors = []string{}
	}
	payload := map[string]any{
		"task_id":        req.TaskID,
		"topic_id":       req.TopicID,
		"task_type":      req.TaskType,
		"user_errors":    userErrors,
		"language_level": req.LanguageLevel,
		"language":       req.Language,
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// map[string]any with string values never fails to encode
	_ = enc.Encode(payload)
	sum := sha256.Sum256(bytes.TrimRight(buf.Bytes(), "\n"))
	return hex.EncodeToString(sum[:])
}
