package progress

// Stage is a step of the upload pipeline. Stages other than Failed are
// strictly ordered; Failed is terminal and reachable from any of them.
type Stage string

const (
	StageUploading            Stage = "uploading"
	StageExtractingText       Stage = "extracting_text"
	StageChunkingText         Stage = "chunking_text"
	StageGeneratingEmbeddings Stage = "generating_embeddings"
	StageStoringVectors       Stage = "storing_vectors"
	StageCompleted            Stage = "completed"
	StageFailed               Stage = "failed"
)

type stageInfo struct {
	ordinal        int
	defaultPercent int
}

var stageTable = map[Stage]stageInfo{
	StageUploading:            {ordinal: 0, defaultPercent: 10},
	StageExtractingText:       {ordinal: 1, defaultPercent: 25},
	StageChunkingText:         {ordinal: 2, defaultPercent: 35},
	StageGeneratingEmbeddings: {ordinal: 3, defaultPercent: 75},
	StageStoringVectors:       {ordinal: 4, defaultPercent: 90},
	StageCompleted:            {ordinal: 5, defaultPercent: 100},
}

const (
	TotalStages = 6

	startPercent          = 5
	embeddingFloorPercent = 35
	embeddingSpanPercent  = 40
	embeddingCeilPercent  = 75

	defaultEstimatedTotalSeconds = 60
)

// DefaultPercent is the percent a stage reports when none is supplied. ok is
// false for Failed, which keeps whatever percent the record had.
func (s Stage) DefaultPercent() (int, bool) {
	info, ok := stageTable[s]
	return info.defaultPercent, ok
}

func (s Stage) Valid() bool {
	_, ok := stageTable[s]
	return ok || s == StageFailed
}

func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// EmbeddingPercent maps embedding sub-progress onto the 35..75 band.
func EmbeddingPercent(current, total int) int {
	if total <= 0 {
		return embeddingFloorPercent
	}
	p := embeddingFloorPercent + int(float64(current)/float64(total)*embeddingSpanPercent)
	return min(p, embeddingCeilPercent)
}
