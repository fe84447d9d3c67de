// Package errors provides structured, coded errors for storesync.
//
// Every failure a cell recovers from is logged as a SyncError carrying a
// registered code, the storage key and scope involved, and the underlying
// cause. The CLI prints the same errors with Format.
//
// # Error Codes
//
//   - S100-S199: synchronization errors (type mismatch, parse, missing
//     record, serialize, storage)
//   - S200-S219: configuration errors
//   - S220-S239: CLI errors
//
// # Usage
//
//	err := errors.New("S101").
//	    WithKey("count").
//	    WithScope("persistent").
//	    Wrap(cause)
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR S101: Stored value could not be parsed
//	//
//	//   key "count" (persistent)
//	//
//	//   The text under the key is not valid JSON. The cell reverted to
//	//   its initial value.
//	//
//	//   Cause: decode: invalid character 'x' looking for beginning of value
package errors
