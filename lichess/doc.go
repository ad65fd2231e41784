// Package lichess wraps the public REST endpoints of lichess.org on top of
// the retrying transport in package httpclient.
//
// A Client is assembled from a config.Config:
//
//	cfg, err := config.Load()
//	if err != nil {
//		return err
//	}
//	client, err := lichess.New(cfg, nil)
//
// Errors keep their httpclient type through wrapping, so errors.As and
// httpclient.IsErrorType work on every returned error.
package lichess
