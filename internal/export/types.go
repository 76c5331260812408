package export

// EDLRequest asks for a CMX 3600 cutlist over previously extracted clips.
// Clips are referenced by their stored filenames and resolved against the
// catalog before generation.
type EDLRequest struct {
	ProjectName string      `json:"project_name"`
	FrameRate   float64     `json:"frame_rate"`
	OutputDir   string      `json:"output_dir"`
	Clips       []ClipInput `json:"clips"`
}

// ClipInput names one clip to include. StartSec/EndSec override the stored
// source offsets when both are set.
type ClipInput struct {
	ClipName string  `json:"clip_name"`
	StartSec float64 `json:"start_sec,omitempty"`
	EndSec   float64 `json:"end_sec,omitempty"`
}

// ResolvedClip is a clip reference bound to real media: the source video the
// clip was cut from and the span inside it, in seconds.
type ResolvedClip struct {
	ClipName  string
	MediaPath string
	StartSec  float64
	EndSec    float64
}

type EDLResponse struct {
	Status          string   `json:"status"`
	Format          string   `json:"format"`
	OutputPath      string   `json:"output_path"`
	ClipCount       int      `json:"clip_count"`
	UnresolvedClips []string `json:"unresolved_clips,omitempty"`
}
