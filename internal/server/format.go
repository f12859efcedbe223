package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// MaxBodyBytes bounds request bodies.
const MaxBodyBytes = 4 << 20

const (
	contentTypeJSON    = "application/json"
	contentTypeMsgpack = "application/x-msgpack"
)

// wantsMsgpack reports whether the client asked for MessagePack via
// ?format=msgpack.
func wantsMsgpack(r *http.Request) bool {
	return r.URL.Query().Get("format") == "msgpack"
}

// writeResponse encodes data as JSON, or as MessagePack when requested.
func writeResponse(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	body, contentType, err := encode(data, wantsMsgpack(r))
	if err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	w.Write(body)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeResponse(w, r, status, map[string]string{"error": msg})
}

func encode(data any, msgpackFormat bool) ([]byte, string, error) {
	if msgpackFormat {
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetCustomStructTag("json")
		if err := enc.Encode(data); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), contentTypeMsgpack, nil
	}

	body, err := json.Marshal(data)
	if err != nil {
		return nil, "", err
	}
	return body, contentTypeJSON, nil
}

// readRequest decodes a JSON or MessagePack body, chosen by Content-Type.
func readRequest(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	defer body.Close()
	return decode(body, strings.HasPrefix(r.Header.Get("Content-Type"), contentTypeMsgpack), v)
}

func decode(rd io.Reader, msgpackFormat bool, v any) error {
	if msgpackFormat {
		dec := msgpack.NewDecoder(rd)
		dec.SetCustomStructTag("json")
		return dec.Decode(v)
	}
	if err := json.NewDecoder(rd).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return err
	}
	return nil
}
