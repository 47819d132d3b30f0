package db

// DumpEEPROMCLI returns the stored settings image at dbPath.
func DumpEEPROMCLI(dbPath string) ([]byte, error) {
	conn, err := Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	e, err := NewEEPROM(conn)
	if err != nil {
		return nil, err
	}
	return e.Snapshot(), nil
}

func EraseEEPROMCLI(dbPath string) error {
	conn, err := Open(dbPath)
	if err != nil {
		return err
	}
	defer conn.Close()
	return EraseEEPROM(conn)
}
