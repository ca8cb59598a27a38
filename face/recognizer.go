package face

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"strings"
	"sync"

	goface "github.com/Kagami/go-face"
	"go.uber.org/zap"

	// Webcam captures commonly arrive as PNG data URLs
	_ "image/gif"
	_ "image/png"
)

// Recognizer extracts descriptors with the dlib pipeline (detector, landmark
// shaper, descriptor net). The models are loaded from disk exactly once per
// process, on first use; concurrent first callers block on the same load
// instead of hitting the disk repeatedly
type Recognizer struct {
	ModelsDir string

	once    sync.Once
	rec     *goface.Recognizer
	initErr error
}

func NewRecognizer(modelsDir string) *Recognizer {
	return &Recognizer{ModelsDir: modelsDir}
}

// Warmup forces the model load early so the first login doesn't pay for it
func (r *Recognizer) Warmup() error {
	return r.ensure()
}

func (r *Recognizer) ensure() error {
	r.once.Do(func() {
		rec, err := goface.NewRecognizer(r.ModelsDir)
		if err != nil {
			r.initErr = fmt.Errorf("failed to load face models from %q, %w", r.ModelsDir, err)
			return
		}

		r.rec = rec
		zap.L().Info("Face models loaded", zap.String("models_dir", r.ModelsDir))
	})

	return r.initErr
}

// Close releases the loaded models. Only needed in tests, the server keeps
// the recognizer for its whole lifetime
func (r *Recognizer) Close() {
	if r.rec != nil {
		r.rec.Close()
	}
}

// Compare decodes both images, extracts a descriptor from the primary face of
// each and returns the Euclidean distance between them
func (r *Recognizer) Compare(captured string, stored []byte) (float64, error) {
	if err := r.ensure(); err != nil {
		return 0, err
	}

	img, err := DecodeImage(captured)
	if err != nil {
		return 0, err
	}

	descA, err := r.descriptor(img)
	if err != nil {
		return 0, err
	}

	descB, err := r.descriptor(stored)
	if err != nil {
		return 0, err
	}

	return EuclideanDistance(descA[:], descB[:]), nil
}

func (r *Recognizer) descriptor(img []byte) (goface.Descriptor, error) {
	faces, err := r.rec.Recognize(img)
	if err != nil {
		return goface.Descriptor{}, fmt.Errorf("face recognition failed, %w", err)
	}

	if len(faces) == 0 {
		return goface.Descriptor{}, ErrNoFaceDetected
	}

	// Multiple faces can legitimately show up on a webcam shot. The
	// reference client puts the subject front and center, so the first
	// detection is the one we verify against
	return faces[0].Descriptor, nil
}

// DecodeImage turns a base64 payload (optionally a data URL) into JPEG bytes.
// The dlib bindings only accept JPEG input, so anything else gets re-encoded
func DecodeImage(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, ErrBadImage
	}

	// Strip a "data:image/...;base64," prefix if the client sent one
	if i := strings.IndexByte(encoded, ','); i != -1 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[i+1:]
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrBadImage
	}

	if http.DetectContentType(raw) == "image/jpeg" {
		return raw, nil
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, ErrBadImage
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, ErrBadImage
	}

	return buf.Bytes(), nil
}
