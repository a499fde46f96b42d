package service

import "github.com/msyamrijal/jadwal-website/internal/model"

// chunkSchedules splits rows into consecutive batches of at most size rows
func chunkSchedules(rows []model.Schedule, size int) [][]model.Schedule {
	if size <= 0 {
		size = len(rows)
	}
	var batches [][]model.Schedule
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		batches = append(batches, rows[start:end])
	}
	return batches
}
