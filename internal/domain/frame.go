package domain

// Frame geometry of the NMC data frame.
const (
	// FrameChannels is the number of channel arrays carried by one frame.
	FrameChannels = 29

	// FrameSamples is the number of samples per channel array.
	FrameSamples = 24

	// TimeFields is the number of int16 values in each frame timestamp.
	TimeFields = 8
)

// Frame represents one decoded data frame.
// Samples is channel-major, exactly as transmitted.
type Frame struct {
	// TimeBegin is the acquisition start timestamp as sent by the amplifier
	TimeBegin [TimeFields]int16

	// TimeEnd is the acquisition end timestamp
	TimeEnd [TimeFields]int16

	// SampleRateRaw is the sample rate field as transmitted
	SampleRateRaw int32

	// Samples holds FrameSamples values for each of the FrameChannels arrays
	Samples [FrameChannels][FrameSamples]int16
}

// Row is one time sample across every channel.
type Row []float64

// Rows transposes the channel-major samples into FrameSamples rows of
// FrameChannels values each.
func (f *Frame) Rows() []Row {
	rows := make([]Row, FrameSamples)
	for s := 0; s < FrameSamples; s++ {
		row := make(Row, FrameChannels)
		for c := 0; c < FrameChannels; c++ {
			row[c] = float64(f.Samples[c][s])
		}
		rows[s] = row
	}
	return rows
}
