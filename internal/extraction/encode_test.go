package extraction

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// testImage renders a small solid image for conversion tests.
func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	return img
}

func pngBytes() []byte {
	var buf bytes.Buffer
	Expect(png.Encode(&buf, testImage())).To(Succeed())
	return buf.Bytes()
}

func jpegBytes() []byte {
	var buf bytes.Buffer
	Expect(jpeg.Encode(&buf, testImage(), nil)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("Encode", func() {
	When("encoding a PNG upload", func() {
		It("should produce a PNG data URI", func() {
			uri, err := Encode(pngBytes(), "image/png")
			Expect(err).NotTo(HaveOccurred())
			Expect(uri).To(HavePrefix("data:image/png;base64,"))
		})

		It("should round-trip through DecodeDataURI", func() {
			data := pngBytes()
			uri, err := Encode(data, "image/png")
			Expect(err).NotTo(HaveOccurred())

			decoded, err := DecodeDataURI(uri)
			Expect(err).NotTo(HaveOccurred())
			Expect(decoded).To(Equal(data))
		})
	})

	When("encoding a JPEG upload", func() {
		It("should convert it to PNG", func() {
			uri, err := Encode(jpegBytes(), "image/jpeg")
			Expect(err).NotTo(HaveOccurred())
			Expect(uri).To(HavePrefix("data:image/png;base64,"))

			decoded, err := DecodeDataURI(uri)
			Expect(err).NotTo(HaveOccurred())
			_, err = png.Decode(bytes.NewReader(decoded))
			Expect(err).NotTo(HaveOccurred())
		})
	})

	When("the content type is missing", func() {
		It("should still decode a recognizable image", func() {
			uri, err := Encode(jpegBytes(), "")
			Expect(err).NotTo(HaveOccurred())
			Expect(uri).To(HavePrefix("data:image/png;base64,"))
		})
	})

	When("the upload is empty", func() {
		It("should fail", func() {
			_, err := Encode(nil, "image/png")
			Expect(err).To(HaveOccurred())
		})
	})

	When("the upload is not an image", func() {
		It("should fail without partial output", func() {
			_, err := Encode([]byte("definitely not an image"), "image/jpeg")
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("DecodeDataURI", func() {
	It("should reject a non-data URI", func() {
		_, err := DecodeDataURI("https://example.com/receipt.png")
		Expect(err).To(HaveOccurred())
	})

	It("should reject a data URI without base64 payload", func() {
		_, err := DecodeDataURI("data:text/plain,hello")
		Expect(err).To(HaveOccurred())
	})

	It("should reject corrupt base64", func() {
		_, err := DecodeDataURI("data:image/png;base64,%%%")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("normalizeImage", func() {
	It("should pass PNG data through unchanged", func() {
		data := pngBytes()
		out, err := normalizeImage(data, "image/png")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(data))
	})

	It("should re-encode JPEG data as PNG", func() {
		out, err := normalizeImage(jpegBytes(), "image/jpeg")
		Expect(err).NotTo(HaveOccurred())
		_, err = png.Decode(bytes.NewReader(out))
		Expect(err).NotTo(HaveOccurred())
	})

	It("should reject unsupported data with a helpful error", func() {
		_, err := normalizeImage([]byte(strings.Repeat("x", 64)), "image/jpeg")
		Expect(err).To(HaveOccurred())
	})
})
