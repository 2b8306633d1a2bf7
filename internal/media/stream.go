// Package media provides the client's local audio/video source: a
// pair of sample tracks pumped from prerecorded IVF and Ogg files.
// Sources are stoppable and swappable, which is how screen share is
// modeled (a second source replacing the camera one).
package media

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
)

const (
	oggPageDuration = 20 * time.Millisecond
	opusSampleRate  = 48000
)

// Source names the files backing a local stream. Either path may be
// empty; the corresponding track then stays silent.
type Source struct {
	Label     string
	VideoPath string
	AudioPath string
}

// LocalStream bundles the local audio and video tracks attached to
// outgoing media links.
type LocalStream struct {
	Label string
	Video *webrtc.TrackLocalStaticSample
	Audio *webrtc.TrackLocalStaticSample

	source   Source
	stop     chan struct{}
	stopOnce sync.Once
}

// NewLocalStream creates the track pair for a source. Tracks exist
// even when no file backs them so links can be negotiated up front.
func NewLocalStream(src Source) (*LocalStream, error) {
	if src.Label == "" {
		src.Label = uuid.NewString()
	}

	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", src.Label)
	if err != nil {
		return nil, fmt.Errorf("create video track: %w", err)
	}

	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", src.Label)
	if err != nil {
		return nil, fmt.Errorf("create audio track: %w", err)
	}

	return &LocalStream{
		Label:  src.Label,
		Video:  video,
		Audio:  audio,
		source: src,
		stop:   make(chan struct{}),
	}, nil
}

// Start launches the file pumps. Missing or unreadable files are
// reported once and leave the track silent; the stream stays usable.
func (s *LocalStream) Start() {
	if s.source.VideoPath != "" {
		go s.pumpVideo()
	}
	if s.source.AudioPath != "" {
		go s.pumpAudio()
	}
}

// Stop halts the pumps. Safe to call more than once.
func (s *LocalStream) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

func (s *LocalStream) pumpVideo() {
	file, err := os.Open(s.source.VideoPath)
	if err != nil {
		slog.Warn("video source unavailable", "path", s.source.VideoPath, "error", err)
		return
	}
	defer file.Close()

	ivf, header, err := ivfreader.NewWith(file)
	if err != nil {
		slog.Warn("video source unreadable", "path", s.source.VideoPath, "error", err)
		return
	}

	frameDuration := time.Millisecond * time.Duration(
		(float32(header.TimebaseNumerator)/float32(header.TimebaseDenominator))*1000)

	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}

		frame, _, err := ivf.ParseNextFrame()
		if errors.Is(err, io.EOF) {
			// Loop the clip.
			if _, err = file.Seek(0, io.SeekStart); err != nil {
				return
			}
			if ivf, _, err = ivfreader.NewWith(file); err != nil {
				return
			}
			continue
		}
		if err != nil {
			slog.Warn("video pump stopped", "error", err)
			return
		}

		if err = s.Video.WriteSample(media.Sample{Data: frame, Duration: frameDuration}); err != nil {
			return
		}
	}
}

func (s *LocalStream) pumpAudio() {
	file, err := os.Open(s.source.AudioPath)
	if err != nil {
		slog.Warn("audio source unavailable", "path", s.source.AudioPath, "error", err)
		return
	}
	defer file.Close()

	ogg, _, err := oggreader.NewWith(file)
	if err != nil {
		slog.Warn("audio source unreadable", "path", s.source.AudioPath, "error", err)
		return
	}

	ticker := time.NewTicker(oggPageDuration)
	defer ticker.Stop()

	var lastGranule uint64
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}

		pageData, pageHeader, err := ogg.ParseNextPage()
		if errors.Is(err, io.EOF) {
			if _, err = file.Seek(0, io.SeekStart); err != nil {
				return
			}
			if ogg, _, err = oggreader.NewWith(file); err != nil {
				return
			}
			lastGranule = 0
			continue
		}
		if err != nil {
			slog.Warn("audio pump stopped", "error", err)
			return
		}

		sampleCount := float64(pageHeader.GranulePosition - lastGranule)
		lastGranule = pageHeader.GranulePosition
		sampleDuration := time.Duration((sampleCount / opusSampleRate) * float64(time.Second))

		if err = s.Audio.WriteSample(media.Sample{Data: pageData, Duration: sampleDuration}); err != nil {
			return
		}
	}
}
