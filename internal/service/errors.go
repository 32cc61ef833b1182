package service

import (
	"errors"

	"collaborative-whiteboard/internal/repository"
)

var (
	ErrInvalidRoomID  = errors.New("invalid room id")
	ErrRoomCodeFailed = errors.New("could not allocate a room code")
	ErrInternalServer = errors.New("internal server error")
)

// mapRepoError 将仓库层的错误映射到服务层定义的错误。
// 未识别的错误一律视为内部错误。
func mapRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrDuplicateEntry) {
		return ErrRoomCodeFailed
	}
	return ErrInternalServer
}
