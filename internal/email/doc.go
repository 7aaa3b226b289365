// Package email envía la invitación a un examen (link con el token) por SMTP.
package email
