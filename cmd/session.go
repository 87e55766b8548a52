package cmd

import (
	"fmt"

	"github.com/creativeprojects/pop3/cfg"
	"github.com/creativeprojects/pop3/pop3"
	"github.com/creativeprojects/pop3/term"
)

// sessionConfig converts an account from the configuration file
func sessionConfig(account cfg.Account) pop3.Config {
	config := pop3.Config{
		Host:                account.Host,
		Port:                account.Port,
		TLS:                 account.TLS,
		SkipTLSVerification: account.SkipTLSVerification,
		Timeout:             account.Timeout,
		RateLimit:           account.RateLimit,
	}
	if global.verbose {
		config.DebugLogger = term.Logger{}
	}
	return config
}

// openSession connects and logs into the account. The caller must Quit the session.
func openSession(accountName string) (*pop3.Session, error) {
	account, err := config.Account(accountName)
	if err != nil {
		return nil, err
	}
	return login(sessionConfig(account), account.Username, account.Password)
}

func login(config pop3.Config, username, password string) (*pop3.Session, error) {
	session := pop3.NewSession(config)
	term.Debugf("connecting to %s", config.Host)
	if err := session.Connect(); err != nil {
		return nil, fmt.Errorf("cannot connect to server: %w", err)
	}
	term.Debugf("server: %s", session.LastReply())

	if err := session.Authenticate(username, password); err != nil {
		session.Quit()
		return nil, fmt.Errorf("authentication failure: %w", err)
	}
	term.Debugf("logged in as %s", username)
	return session, nil
}
