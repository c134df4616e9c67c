/*
 *	Copyright 2024 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

// Package ldpaths lists the directories where shared libraries are searched for, the way the dynamic
// linker does it on linux: LD_LIBRARY_PATH and /etc/ld.so.conf (with its includes).
package ldpaths

import (
	"bufio"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// LdConfFile is the linker configuration parsed by DefaultPaths.
const LdConfFile = "/etc/ld.so.conf"

var (
	reLdConfInclude = regexp.MustCompile(`^\s*include\s*(.*)$`)
	reLdConfComment = regexp.MustCompile(`^\s*#`)
	reLdConfPath    = regexp.MustCompile(`^\s*(.+?)\s*$`)
)

// FromEnv returns the ":" separated list of directories in the environment variable, and whether it was set.
func FromEnv(envVar string) (paths []string, found bool) {
	value, found := os.LookupEnv(envVar)
	if !found {
		return nil, false
	}
	return slices.DeleteFunc(strings.Split(value, ":"), func(p string) bool {
		return p == "" // Remove empty paths.
	}), true
}

// DefaultPaths returns the default search paths, in order: the user's "~/.local/lib", "/usr/local/lib",
// the absolute entries of LD_LIBRARY_PATH and the entries of /etc/ld.so.conf.
func DefaultPaths() []string {
	var paths []string

	// Local (XDG) path.
	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, path.Join(homeDir, ".local", "lib"))
	} else {
		klog.Errorf("Couldn't get user's home directory -- it won't be searched for libraries: %v", err)
	}
	paths = append(paths, "/usr/local/lib")

	for _, ldPath := range strings.Split(os.Getenv("LD_LIBRARY_PATH"), ":") {
		if ldPath == "" || !path.IsAbs(ldPath) {
			// No empty or relative paths.
			continue
		}
		paths = append(paths, ldPath)
	}
	return ParseLdConf(paths, LdConfFile)
}

// ParseLdConf appends to paths the directories listed in fileWithIncludes, following "include" entries.
// Errors are logged and the paths collected so far are returned.
func ParseLdConf(paths []string, fileWithIncludes string) []string {
	klog.V(2).Infof("Loading paths for libraries from %q", fileWithIncludes)
	file, err := os.Open(fileWithIncludes)
	if err != nil {
		klog.Errorf("Failed to load paths for libraries from %q: %v", fileWithIncludes, err)
		return paths
	}
	defer func() { _ = file.Close() }()
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if parts := reLdConfInclude.FindStringSubmatch(line); len(parts) > 0 {
			pattern := parts[1]
			if !path.IsAbs(pattern) {
				// Relative includes are relative to the including file.
				pattern = path.Join(path.Dir(fileWithIncludes), pattern)
			}
			klog.V(2).Infof("ParseLdConf: include %q", pattern)
			files, err := filepath.Glob(pattern)
			if err != nil {
				klog.Errorf("Failed to load paths for libraries while expanding include entry %q: %v", pattern, err)
				continue
			}
			for _, includeFile := range files {
				paths = ParseLdConf(paths, includeFile)
			}

		} else if reLdConfComment.MatchString(line) {
			klog.V(2).Infof("ParseLdConf: comment %q", line)

		} else if parts := reLdConfPath.FindStringSubmatch(line); len(parts) > 0 {
			klog.V(2).Infof("ParseLdConf: path %q", parts[1])
			paths = append(paths, parts[1])
		}
	}
	if err := scanner.Err(); err != nil {
		klog.Errorf("Error while loading paths for libraries from %q: %v", fileWithIncludes, err)
	}
	return paths
}

// Find returns the first regular file named by one of the names in one of the paths.
// Paths are searched in order, and for each path the names are tried in order.
// An absolute name is checked directly.
func Find(names []string, paths []string) (string, error) {
	for _, name := range names {
		if path.IsAbs(name) && isRegularFile(name) {
			return name, nil
		}
	}
	for _, dir := range paths {
		for _, name := range names {
			if path.IsAbs(name) {
				continue
			}
			candidate := path.Join(dir, name)
			if isRegularFile(candidate) {
				return candidate, nil
			}
		}
	}
	return "", errors.Errorf("none of %v found in paths %v", names, paths)
}

func isRegularFile(filePath string) bool {
	info, err := os.Stat(filePath)
	return err == nil && !info.IsDir()
}
