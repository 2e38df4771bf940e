// Package scaffold writes a starter configuration document for the
// init verb (§4.8), adapted from orc's deterministic fallback template
// writer.
package scaffold

import (
	"fmt"
	"os"
	"path/filepath"
)

const starterConfig = `dicom_root: /data/dicom
bids_root: /data/bids
derivatives_root: /data/derivatives
state_file: .scheduler/state.cbor
sessions_file: ""

batch_partition: ""
batch_account: ""
batch_mem: "8G"
batch_cpus: "4"
batch_log_dir: .scheduler/logs

procedures:
  - name: bids
    output_dir: ""
    script: bids_convert.sh
    scope: session
    depends_on: []
    completion_marker: "anat/*_T1w.nii.gz"

  - name: recon
    output_dir: recon
    script: recon.sh
    scope: subject
    depends_on: [bids]
    completion_marker: "scripts/recon-all.done"
`

// Init writes a starter configuration document at path, refusing to
// overwrite an existing file.
func Init(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("scaffold: %s already exists, refusing to overwrite", path)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("scaffold: checking %s: %w", path, err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("scaffold: creating %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, []byte(starterConfig), 0644); err != nil {
		return fmt.Errorf("scaffold: writing %s: %w", path, err)
	}
	return nil
}
