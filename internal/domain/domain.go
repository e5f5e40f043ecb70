package domain

import (
	"github.com/yungbote/docqa-backend/internal/domain/chat"
	"github.com/yungbote/docqa-backend/internal/domain/documents"
)

type (
	File          = documents.File
	DocumentChunk = documents.DocumentChunk
	DocumentArea  = documents.DocumentArea
	AreaType      = documents.AreaType
	Coordinates   = documents.Coordinates

	ChatSession = chat.ChatSession
	ChatMessage = chat.ChatMessage
)

const (
	FileStatusProcessing    = documents.FileStatusProcessing
	FileStatusTextExtracted = documents.FileStatusTextExtracted
	FileStatusCompleted     = documents.FileStatusCompleted
	FileStatusFailed        = documents.FileStatusFailed

	AreaProblem  = documents.AreaProblem
	AreaSolution = documents.AreaSolution

	ChunkTypeGeneral      = documents.ChunkTypeGeneral
	ChunkTypeProblemArea  = documents.ChunkTypeProblemArea
	ChunkTypeSolutionArea = documents.ChunkTypeSolutionArea

	RoleUser      = chat.RoleUser
	RoleAssistant = chat.RoleAssistant
	ModeSingleDoc = chat.ModeSingleDoc
	ModeMultiDoc  = chat.ModeMultiDoc
)

var (
	ParseAreaType = documents.ParseAreaType
	ChunkVectorID = documents.ChunkVectorID
	AreaVectorID  = documents.AreaVectorID
	EncodeSources = chat.EncodeSources
)
