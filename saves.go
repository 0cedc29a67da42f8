package isocarto

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SaveDirCandidates lists the places a local client keeps its saves, in
// search order.
func SaveDirCandidates() []string {
	var paths []string
	if appData := os.Getenv("APPDATA"); appData != "" {
		paths = append(paths, filepath.Join(appData, ".minecraft", "saves"))
	}
	if home := os.Getenv("HOME"); home != "" {
		paths = append(paths,
			filepath.Join(home, "Library", "Application Support", "minecraft", "saves"),
			filepath.Join(home, ".minecraft", "saves"),
		)
	}
	return paths
}

// SaveDir returns the first save directory that exists, or "".
func SaveDir() string {
	for _, path := range SaveDirCandidates() {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return path
		}
	}
	return ""
}

type WorldInfo struct {
	Path  string
	Level *LevelInfo
}

// ListWorlds returns the worlds in the local save directory, keyed by level
// name. Worlds in directories named World1..World9 are also keyed by their
// number. A nil map means no save directory was found.
func ListWorlds() (map[string]WorldInfo, error) {
	dir := SaveDir()
	if dir == "" {
		return nil, nil
	}
	return ListWorldsIn(dir)
}

func ListWorldsIn(saveDir string) (map[string]WorldInfo, error) {
	entries, err := os.ReadDir(saveDir)
	if err != nil {
		return nil, err
	}

	worlds := make(map[string]WorldInfo)
	for _, e := range entries {
		path := filepath.Join(saveDir, e.Name())
		levelPath := filepath.Join(path, "level.dat")
		if _, err := os.Stat(levelPath); err != nil {
			continue
		}

		level, err := ReadLevel(levelPath)
		if err != nil {
			return nil, err
		}
		info := WorldInfo{Path: path, Level: level}

		name := e.Name()
		if strings.HasPrefix(name, "World") && len(name) == 6 {
			if _, err := strconv.Atoi(name[5:]); err == nil {
				worlds[name[5:]] = info
			}
		}
		if level.LevelName != "" {
			worlds[level.LevelName] = info
		}
	}
	return worlds, nil
}
