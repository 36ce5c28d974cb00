package device

import "os"

type fileDevice struct {
	file     *os.File
	filename string
	size     int64
}

// NewFileDevice creates a file-backed block device for the given
// support file, which must already exist.
func NewFileDevice(filename string) (RandDevice, error) {
	file, err := os.OpenFile(filename, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	fi, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	return &fileDevice{file, filename, fi.Size()}, nil
}

func (dev *fileDevice) Read(buf []byte, pos int64) error {
	if pos < 0 || pos+int64(len(buf)) > dev.size {
		return ERR_BOUNDS
	}
	_, err := dev.file.ReadAt(buf, pos)
	return err
}

func (dev *fileDevice) Write(buf []byte, pos int64) error {
	if pos < 0 || pos+int64(len(buf)) > dev.size {
		return ERR_BOUNDS
	}
	_, err := dev.file.WriteAt(buf, pos)
	return err
}

func (dev *fileDevice) Size() int64 {
	return dev.size
}

func (dev *fileDevice) Close() error {
	return dev.file.Close()
}
