package models

import (
	"time"

	"github.com/google/uuid"
)

type JobStage string

const (
	StageUploadValidate JobStage = "upload_validate"
	StageAudioExtract   JobStage = "audio_extract"
	StageASR            JobStage = "asr"
	StageSceneDetect    JobStage = "scene_detect"
	StageAlign          JobStage = "align"
	StageEmbedText      JobStage = "embed_text"
	StageSampleFrames   JobStage = "sample_frames"
	StageEmbedVision    JobStage = "embed_vision"
	StageBuildSidecar   JobStage = "build_sidecar"
	StageCommit         JobStage = "commit"
)

// PipelineStages — все десять стадий в порядке исполнения.
var PipelineStages = []JobStage{
	StageUploadValidate,
	StageAudioExtract,
	StageASR,
	StageSceneDetect,
	StageAlign,
	StageEmbedText,
	StageSampleFrames,
	StageEmbedVision,
	StageBuildSidecar,
	StageCommit,
}

type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
	JobCancelled JobState = "cancelled"
)

type Job struct {
	ID         uuid.UUID  `db:"job_id"`
	VideoID    uuid.UUID  `db:"video_id"`
	Stage      JobStage   `db:"stage"`
	State      JobState   `db:"state"`
	Progress   int        `db:"progress"`
	ErrorText  *string    `db:"error_text"`
	StartedAt  *time.Time `db:"started_at"`
	FinishedAt *time.Time `db:"finished_at"`
}

// Open reports whether the job still occupies the (video_id, stage) slot.
// Инвариант: не более одного open job на пару.
func (j *Job) Open() bool {
	return j.State == JobPending || j.State == JobRunning
}
