package lock

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckLocal(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		info    fsInfo
		statErr error
		wantErr error
		wantMsg []string
	}{
		{name: "local disk", info: fsInfo{name: "local"}},
		{name: "nfs mount", info: fsInfo{name: "nfs", remote: true}, wantErr: ErrNetworkFilesystem,
			wantMsg: []string{"nfs", "generator.lock_path", "another host"}},
		{name: "smb mount", info: fsInfo{name: "smbfs", remote: true}, wantErr: ErrNetworkFilesystem,
			wantMsg: []string{"smbfs"}},
		{name: "statfs failure", statErr: os.ErrPermission, wantErr: os.ErrPermission,
			wantMsg: []string{"inspect filesystem"}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			lockPath := filepath.Join(t.TempDir(), ".dagwright.lock")
			err := checkLocal(lockPath, func(string) (fsInfo, error) {
				return tc.info, tc.statErr
			})
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("checkLocal() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("checkLocal() = %v, want %v", err, tc.wantErr)
			}
			for _, want := range tc.wantMsg {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q does not mention %q", err, want)
				}
			}
		})
	}
}

func TestCheckLocalInspectsNearestExistingDirectory(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	lockPath := filepath.Join(root, "not", "yet", "dags", ".dagwright.lock")

	var inspected string
	err := checkLocal(lockPath, func(dir string) (fsInfo, error) {
		inspected = dir
		return fsInfo{name: "local"}, nil
	})
	if err != nil {
		t.Fatalf("checkLocal() = %v", err)
	}
	if inspected != root {
		t.Fatalf("inspected %q, want %q", inspected, root)
	}
	if _, err := os.Stat(filepath.Join(root, "not")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("checkLocal created directories: %v", err)
	}
}

func TestCheckLocalParentIsFile(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "output.yml")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	err := checkLocal(filepath.Join(file, ".dagwright.lock"), func(string) (fsInfo, error) {
		t.Fatal("stat must not run when the lock directory is a file")
		return fsInfo{}, nil
	})
	if err == nil || !strings.Contains(err.Error(), "not a directory") {
		t.Fatalf("checkLocal() = %v, want not-a-directory error", err)
	}
}

func TestCheckLocalEmptyPath(t *testing.T) {
	t.Parallel()

	if err := CheckLocalFilesystem("  "); err == nil {
		t.Fatal("expected error for blank path")
	}
}
