package clock

import (
	"github.com/pion/rtp"

	"github.com/linn-oss/ohmediapipeline/jiffies"
)

// RTPTimestampSource turns RTP packet headers into the (drift, networkTime)
// samples a Puller consumes, for a Mode whose source is RTP-timed (e.g. a
// songcast-style receiver). It is independent of the RTP payload codec:
// only rtp.Header.Timestamp is used.
type RTPTimestampSource struct {
	sampleRate    uint32
	haveBase      bool
	baseTimestamp uint32
	baseJiffies   uint64
}

// NewRTPTimestampSource builds a source for a stream at sampleRate (the RTP
// clock rate, which for audio is normally the sample rate).
func NewRTPTimestampSource(sampleRate uint32) *RTPTimestampSource {
	return &RTPTimestampSource{sampleRate: sampleRate}
}

// Sample extracts the network-time-in-jiffies for one RTP packet, and the
// drift between that and the pipeline's own accounting of elapsed jiffies
// for the same packet (localJiffies), ready to feed to Puller.NotifyTimestamp.
func (s *RTPTimestampSource) Sample(h *rtp.Header, localJiffies uint64) (driftJiffies int64, networkTimeJiffies uint64) {
	if !s.haveBase {
		s.haveBase = true
		s.baseTimestamp = h.Timestamp
		s.baseJiffies = localJiffies
	}
	elapsedSamples := uint64(h.Timestamp - s.baseTimestamp)
	networkTimeJiffies = s.baseJiffies + jiffies.FromSamples(elapsedSamples, s.sampleRate)
	driftJiffies = int64(networkTimeJiffies) - int64(localJiffies)
	return driftJiffies, networkTimeJiffies
}
